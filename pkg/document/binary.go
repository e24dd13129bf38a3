package document

import (
	"bytes"
	"fmt"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/dittotasks/pkg/orderedmap"
)

// binaryMagic prefixes every binary document.
var binaryMagic = [4]byte{'D', 'T', 'D', 'B'}

// BinaryVersion is the schema version written by ToBinary. Version 1 stored
// task instants as Unix nanoseconds and is no longer readable.
const BinaryVersion uint32 = 2

// XDR wire layout. The document timestamp travels as Unix nanoseconds so
// MinTimestamp round-trips exactly. Task instants are user supplied and may
// fall outside the int64 nanosecond range, so they travel as seconds plus
// nanoseconds. Optional values carry an explicit presence flag.
type wireDocument struct {
	Magic        [4]byte
	Version      uint32
	LastModified int64
	Projects     []wireProject
}

type wireProject struct {
	ID           [16]byte
	Name         string
	Color        string
	SourceRoot   string
	Tags         []wireTag
	OpenTasks    []wireTask
	DoneTasks    []wireTask
	DerivedTasks []wireTask
}

type wireTag struct {
	ID    [16]byte
	Name  string
	Color string
}

type wireTask struct {
	ID            [16]byte
	Name          string
	Description   string
	Tags          [][16]byte
	HasDue        bool
	Due           wireInstant
	NeedsReview   bool
	TimeSpent     int64
	Tracking      bool
	TrackingSince wireInstant
}

type wireInstant struct {
	Seconds int64
	Nanos   uint32
}

func instantToWire(t time.Time) wireInstant {
	return wireInstant{Seconds: t.Unix(), Nanos: uint32(t.Nanosecond())}
}

func (w wireInstant) time() time.Time {
	return time.Unix(w.Seconds, int64(w.Nanos)).UTC()
}

// ToBinary encodes the document in its canonical binary form. Identical
// content and timestamp always produce identical bytes.
func (d *Document) ToBinary() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return encodeBinary(&d.projects, d.lastModified)
}

// FromBinary decodes a document produced by ToBinary.
func FromBinary(data []byte) (doc *Document, err error) {
	if len(data) < len(binaryMagic) || !bytes.Equal(data[:len(binaryMagic)], binaryMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidBinary)
	}

	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrInvalidBinary, r)
		}
	}()

	r := bytes.NewReader(data)
	var header struct {
		Magic   [4]byte
		Version uint32
	}
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBinary, err)
	}
	if header.Version != BinaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}

	var w wireDocument
	if _, err := xdr.Unmarshal(r, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBinary, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidBinary, r.Len())
	}

	doc = New()
	doc.lastModified = time.Unix(0, w.LastModified).UTC()
	for _, wp := range w.Projects {
		id := ProjectID(wp.ID)
		if doc.projects.Contains(id) {
			return nil, fmt.Errorf("%w: duplicate project %s", ErrInvalidBinary, id)
		}
		p, err := projectFromWire(wp)
		if err != nil {
			return nil, err
		}
		doc.projects.Insert(id, p)
	}
	return doc, nil
}

func encodeBinary(db *Database, lastModified time.Time) ([]byte, error) {
	w := wireDocument{
		Magic:        binaryMagic,
		Version:      BinaryVersion,
		LastModified: lastModified.UnixNano(),
		Projects:     make([]wireProject, 0, db.Len()),
	}
	for id, p := range db.All() {
		w.Projects = append(w.Projects, projectToWire(id, p))
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &w); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

func projectToWire(id ProjectID, p *Project) wireProject {
	wp := wireProject{
		ID:           id,
		Name:         p.Name,
		Color:        p.Color,
		SourceRoot:   p.SourceRoot,
		Tags:         make([]wireTag, 0, p.Tags.Len()),
		OpenTasks:    tasksToWire(&p.OpenTasks),
		DoneTasks:    tasksToWire(&p.DoneTasks),
		DerivedTasks: tasksToWire(&p.DerivedTasks),
	}
	for tid, t := range p.Tags.All() {
		wp.Tags = append(wp.Tags, wireTag{ID: tid, Name: t.Name, Color: t.Color})
	}
	return wp
}

func tasksToWire(tasks *orderedmap.Map[TaskID, *Task]) []wireTask {
	out := make([]wireTask, 0, tasks.Len())
	for id, t := range tasks.All() {
		wt := wireTask{
			ID:          id,
			Name:        t.Name,
			Description: t.Description,
			Tags:        make([][16]byte, 0, len(t.Tags)),
			NeedsReview: t.NeedsReview,
			TimeSpent:   int64(t.TimeSpent),
		}
		for _, tag := range t.Tags {
			wt.Tags = append(wt.Tags, tag)
		}
		if t.Due != nil {
			wt.HasDue, wt.Due = true, instantToWire(*t.Due)
		}
		if t.TrackingSince != nil {
			wt.Tracking, wt.TrackingSince = true, instantToWire(*t.TrackingSince)
		}
		out = append(out, wt)
	}
	return out
}

func projectFromWire(wp wireProject) (*Project, error) {
	p := NewProject(wp.Name, wp.Color)
	p.SourceRoot = wp.SourceRoot
	for _, wt := range wp.Tags {
		id := TagID(wt.ID)
		if p.Tags.Contains(id) {
			return nil, fmt.Errorf("%w: duplicate tag %s", ErrInvalidBinary, id)
		}
		p.Tags.Insert(id, &Tag{Name: wt.Name, Color: wt.Color})
	}

	seen := make(map[TaskID]bool)
	for _, part := range []struct {
		wire []wireTask
		into *orderedmap.Map[TaskID, *Task]
	}{
		{wp.OpenTasks, &p.OpenTasks},
		{wp.DoneTasks, &p.DoneTasks},
		{wp.DerivedTasks, &p.DerivedTasks},
	} {
		for _, wt := range part.wire {
			id := TaskID(wt.ID)
			if seen[id] {
				return nil, fmt.Errorf("%w: duplicate task %s", ErrInvalidBinary, id)
			}
			seen[id] = true
			part.into.Insert(id, taskFromWire(wt))
		}
	}
	return p, nil
}

func taskFromWire(wt wireTask) *Task {
	t := &Task{
		Name:        wt.Name,
		Description: wt.Description,
		NeedsReview: wt.NeedsReview,
		TimeSpent:   time.Duration(wt.TimeSpent),
	}
	if len(wt.Tags) > 0 {
		t.Tags = make([]TagID, 0, len(wt.Tags))
		for _, tag := range wt.Tags {
			t.Tags = append(t.Tags, tag)
		}
	}
	if wt.HasDue {
		due := wt.Due.time()
		t.Due = &due
	}
	if wt.Tracking {
		since := wt.TrackingSince.time()
		t.TrackingSince = &since
	}
	return t
}
