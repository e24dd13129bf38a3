// Package doctest builds populated documents for tests and benchmarks.
package doctest

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/marmos91/dittotasks/pkg/document"
)

var colors = []string{"#e06c75", "#98c379", "#e5c07b", "#61afef", "#c678dd", "#56b6c2"}

// Generate returns a document with the given number of projects, each
// holding tasksPerProject open tasks plus a few tags, done tasks and due
// dates so every field of the model is exercised.
func Generate(projects, tasksPerProject int) *document.Document {
	doc := document.New()
	doc.Modify(func(db *document.Database) {
		for i := range projects {
			p := document.NewProject(fmt.Sprintf("Project %d", i), colors[i%len(colors)])
			if i%3 == 0 {
				p.SourceRoot = fmt.Sprintf("/src/project-%d", i)
			}

			tags := make([]document.TagID, 0, 3)
			for j := range 3 {
				id := document.NewTagID()
				p.Tags.Insert(id, &document.Tag{Name: fmt.Sprintf("tag-%d", j), Color: colors[j]})
				tags = append(tags, id)
			}

			for j := range tasksPerProject {
				t := document.NewTask(fmt.Sprintf("Task %d.%d", i, j))
				t.Description = fmt.Sprintf("description of task %d in project %d", j, i)
				if j%2 == 0 {
					t.Tags = []document.TagID{tags[rand.IntN(len(tags))]}
				}
				if j%5 == 0 {
					due := time.Date(2030, time.Month(1+j%12), 1+j%28, 12, 0, 0, 0, time.UTC)
					t.Due = &due
				}
				t.NeedsReview = j%7 == 0
				t.TimeSpent = time.Duration(j) * time.Minute

				id := document.NewTaskID()
				switch j % 10 {
				case 8:
					p.DoneTasks.Insert(id, t)
				case 9:
					p.DerivedTasks.Insert(id, t)
				default:
					p.OpenTasks.Insert(id, t)
				}
			}
			db.Insert(document.NewProjectID(), p)
		}
	})
	return doc
}

// TaskCount returns the number of tasks in every category of every project.
func TaskCount(doc *document.Document) int {
	n := 0
	doc.Read(func(db *document.Database) {
		for _, p := range db.All() {
			n += p.OpenTasks.Len() + p.DoneTasks.Len() + p.DerivedTasks.Len()
		}
	})
	return n
}
