package document

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittotasks/pkg/orderedmap"
)

// ProjectID identifies a project. IDs are random and never recycled.
type ProjectID uuid.UUID

// TaskID identifies a task.
type TaskID uuid.UUID

// TagID identifies a tag within a project.
type TagID uuid.UUID

func NewProjectID() ProjectID { return ProjectID(uuid.New()) }
func NewTaskID() TaskID       { return TaskID(uuid.New()) }
func NewTagID() TagID         { return TagID(uuid.New()) }

func (id ProjectID) String() string { return uuid.UUID(id).String() }
func (id TaskID) String() string    { return uuid.UUID(id).String() }
func (id TagID) String() string     { return uuid.UUID(id).String() }

// ParseProjectID parses the canonical textual form of a ProjectID.
func ParseProjectID(s string) (ProjectID, error) {
	u, err := uuid.Parse(s)
	return ProjectID(u), err
}

// ParseTaskID parses the canonical textual form of a TaskID.
func ParseTaskID(s string) (TaskID, error) {
	u, err := uuid.Parse(s)
	return TaskID(u), err
}

// ParseTagID parses the canonical textual form of a TagID.
func ParseTagID(s string) (TagID, error) {
	u, err := uuid.Parse(s)
	return TagID(u), err
}

// Database is the ordered collection of projects held by a Document.
type Database = orderedmap.Map[ProjectID, *Project]

// Tag is a colored label tasks of the same project can reference.
type Tag struct {
	Name  string
	Color string
}

// Project groups tags and tasks. Tasks are partitioned by category:
// open (pending), done, and derived from an external source such as
// TODO comments under SourceRoot.
type Project struct {
	Name  string
	Color string

	// SourceRoot is the directory derived tasks are collected from.
	// Empty when the project has none.
	SourceRoot string

	Tags         orderedmap.Map[TagID, *Tag]
	OpenTasks    orderedmap.Map[TaskID, *Task]
	DoneTasks    orderedmap.Map[TaskID, *Task]
	DerivedTasks orderedmap.Map[TaskID, *Task]
}

// NewProject returns an empty project.
func NewProject(name, color string) *Project {
	return &Project{Name: name, Color: color}
}

// Task is a single unit of work.
type Task struct {
	Name        string
	Description string
	Tags        []TagID

	// Due is nil when the task has no due date.
	Due *time.Time

	NeedsReview bool

	// TimeSpent is the time accumulated by finished tracking sessions.
	TimeSpent time.Duration

	// TrackingSince is set while a tracking session runs. It is a live
	// clock and does not count as document content.
	TrackingSince *time.Time
}

func (p *Project) clone() *Project {
	return &Project{
		Name:         p.Name,
		Color:        p.Color,
		SourceRoot:   p.SourceRoot,
		Tags:         *p.Tags.Clone(func(t *Tag) *Tag { c := *t; return &c }),
		OpenTasks:    *p.OpenTasks.Clone((*Task).clone),
		DoneTasks:    *p.DoneTasks.Clone((*Task).clone),
		DerivedTasks: *p.DerivedTasks.Clone((*Task).clone),
	}
}

func cloneDatabase(db *Database) *Database {
	return db.Clone((*Project).clone)
}

// NewTask returns a task with no tags and no due date.
func NewTask(name string) *Task {
	return &Task{Name: name}
}

func (t *Task) clone() *Task {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	if t.Due != nil {
		due := *t.Due
		c.Due = &due
	}
	if t.TrackingSince != nil {
		since := *t.TrackingSince
		c.TrackingSince = &since
	}
	return &c
}

// StartTracking opens a tracking session. No-op if one is already running.
func (t *Task) StartTracking(now time.Time) {
	if t.TrackingSince != nil {
		return
	}
	now = now.UTC()
	t.TrackingSince = &now
}

// StopTracking closes the running session and folds it into TimeSpent.
func (t *Task) StopTracking(now time.Time) {
	if t.TrackingSince == nil {
		return
	}
	if elapsed := now.Sub(*t.TrackingSince); elapsed > 0 {
		t.TimeSpent += elapsed
	}
	t.TrackingSince = nil
}

// TotalTimeSpent returns TimeSpent plus the running session, if any.
func (t *Task) TotalTimeSpent(now time.Time) time.Duration {
	total := t.TimeSpent
	if t.TrackingSince != nil {
		if elapsed := now.Sub(*t.TrackingSince); elapsed > 0 {
			total += elapsed
		}
	}
	return total
}

// Category selects one of a project's task collections.
type Category int

const (
	CategoryOpen Category = iota
	CategoryDone
	CategoryDerived
)

func (c Category) String() string {
	switch c {
	case CategoryOpen:
		return "open"
	case CategoryDone:
		return "done"
	case CategoryDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// Tasks returns the collection for the given category.
func (p *Project) Tasks(c Category) *orderedmap.Map[TaskID, *Task] {
	switch c {
	case CategoryDone:
		return &p.DoneTasks
	case CategoryDerived:
		return &p.DerivedTasks
	default:
		return &p.OpenTasks
	}
}

// FindTask looks a task up in every category.
func (p *Project) FindTask(id TaskID) (*Task, Category, bool) {
	for _, c := range []Category{CategoryOpen, CategoryDone, CategoryDerived} {
		if t, ok := p.Tasks(c).Get(id); ok {
			return t, c, true
		}
	}
	return nil, 0, false
}

// CompleteTask moves an open task to the end of the done tasks.
// It reports whether the task was open.
func (p *Project) CompleteTask(id TaskID) bool {
	t, ok := p.OpenTasks.Get(id)
	if !ok {
		return false
	}
	p.OpenTasks.Remove(id)
	p.DoneTasks.Insert(id, t)
	return true
}

// ReopenTask moves a done task back to the end of the open tasks.
func (p *Project) ReopenTask(id TaskID) bool {
	t, ok := p.DoneTasks.Get(id)
	if !ok {
		return false
	}
	p.DoneTasks.Remove(id)
	p.OpenTasks.Insert(id, t)
	return true
}
