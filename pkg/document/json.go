package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marmos91/dittotasks/pkg/orderedmap"
)

// JSON layout. Ordered maps become arrays so the order sequence survives.
// Fields added after version 1 must be optional and decode to their zero
// value when absent.
type jsonDocument struct {
	Version      uint32        `json:"version"`
	LastModified time.Time     `json:"last_modified"`
	Projects     []jsonProject `json:"projects"`
}

type jsonProject struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Color        string     `json:"color"`
	SourceRoot   string     `json:"source_root,omitempty"`
	Tags         []jsonTag  `json:"tags"`
	OpenTasks    []jsonTask `json:"open_tasks"`
	DoneTasks    []jsonTask `json:"done_tasks"`
	DerivedTasks []jsonTask `json:"derived_tasks"`
}

type jsonTag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type jsonTask struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Tags          []string   `json:"tags"`
	Due           *time.Time `json:"due,omitempty"`
	NeedsReview   bool       `json:"needs_review"`
	TimeSpent     int64      `json:"time_spent_ns"`
	TrackingSince *time.Time `json:"tracking_since,omitempty"`
}

// ToJSON encodes the document as indented JSON. Identical content and
// timestamp always produce identical bytes.
func (d *Document) ToJSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	jd := jsonDocument{
		Version:      BinaryVersion,
		LastModified: d.lastModified,
		Projects:     make([]jsonProject, 0, d.projects.Len()),
	}
	for id, p := range d.projects.All() {
		jp := jsonProject{
			ID:           id.String(),
			Name:         p.Name,
			Color:        p.Color,
			SourceRoot:   p.SourceRoot,
			Tags:         make([]jsonTag, 0, p.Tags.Len()),
			OpenTasks:    tasksToJSON(&p.OpenTasks),
			DoneTasks:    tasksToJSON(&p.DoneTasks),
			DerivedTasks: tasksToJSON(&p.DerivedTasks),
		}
		for tid, t := range p.Tags.All() {
			jp.Tags = append(jp.Tags, jsonTag{ID: tid.String(), Name: t.Name, Color: t.Color})
		}
		jd.Projects = append(jd.Projects, jp)
	}

	data, err := json.MarshalIndent(jd, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document json: %w", err)
	}
	return data, nil
}

func tasksToJSON(tasks *orderedmap.Map[TaskID, *Task]) []jsonTask {
	out := make([]jsonTask, 0, tasks.Len())
	for id, t := range tasks.All() {
		jt := jsonTask{
			ID:            id.String(),
			Name:          t.Name,
			Description:   t.Description,
			Tags:          make([]string, 0, len(t.Tags)),
			Due:           utcPtr(t.Due),
			NeedsReview:   t.NeedsReview,
			TimeSpent:     int64(t.TimeSpent),
			TrackingSince: utcPtr(t.TrackingSince),
		}
		for _, tag := range t.Tags {
			jt.Tags = append(jt.Tags, tag.String())
		}
		out = append(out, jt)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// FromJSON decodes a document produced by ToJSON.
func FromJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var jd jsonDocument
	if err := dec.Decode(&jd); err != nil {
		return nil, fmt.Errorf("decode document json: %w", err)
	}
	if jd.Version > BinaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, jd.Version)
	}

	doc := New()
	if !jd.LastModified.IsZero() {
		doc.lastModified = jd.LastModified.UTC()
	}
	for _, jp := range jd.Projects {
		id, err := ParseProjectID(jp.ID)
		if err != nil {
			return nil, fmt.Errorf("project id %q: %w", jp.ID, err)
		}
		if doc.projects.Contains(id) {
			return nil, fmt.Errorf("duplicate project %s", id)
		}
		p, err := projectFromJSON(jp)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", id, err)
		}
		doc.projects.Insert(id, p)
	}
	return doc, nil
}

func projectFromJSON(jp jsonProject) (*Project, error) {
	p := NewProject(jp.Name, jp.Color)
	p.SourceRoot = jp.SourceRoot
	for _, jt := range jp.Tags {
		id, err := ParseTagID(jt.ID)
		if err != nil {
			return nil, fmt.Errorf("tag id %q: %w", jt.ID, err)
		}
		if p.Tags.Contains(id) {
			return nil, fmt.Errorf("duplicate tag %s", id)
		}
		p.Tags.Insert(id, &Tag{Name: jt.Name, Color: jt.Color})
	}

	seen := make(map[TaskID]bool)
	for _, part := range []struct {
		json []jsonTask
		into *orderedmap.Map[TaskID, *Task]
	}{
		{jp.OpenTasks, &p.OpenTasks},
		{jp.DoneTasks, &p.DoneTasks},
		{jp.DerivedTasks, &p.DerivedTasks},
	} {
		for _, jt := range part.json {
			id, err := ParseTaskID(jt.ID)
			if err != nil {
				return nil, fmt.Errorf("task id %q: %w", jt.ID, err)
			}
			if seen[id] {
				return nil, fmt.Errorf("duplicate task %s", id)
			}
			seen[id] = true

			t, err := taskFromJSON(jt)
			if err != nil {
				return nil, fmt.Errorf("task %s: %w", id, err)
			}
			part.into.Insert(id, t)
		}
	}
	return p, nil
}

func taskFromJSON(jt jsonTask) (*Task, error) {
	t := &Task{
		Name:          jt.Name,
		Description:   jt.Description,
		Due:           utcPtr(jt.Due),
		NeedsReview:   jt.NeedsReview,
		TimeSpent:     time.Duration(jt.TimeSpent),
		TrackingSince: utcPtr(jt.TrackingSince),
	}
	for _, s := range jt.Tags {
		id, err := ParseTagID(s)
		if err != nil {
			return nil, fmt.Errorf("tag id %q: %w", s, err)
		}
		t.Tags = append(t.Tags, id)
	}
	return t, nil
}
