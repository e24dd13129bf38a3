package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/dittotasks/pkg/document"
	"github.com/marmos91/dittotasks/pkg/orderedmap"
)

// lookup finds an entry of m by 1-based position, full ID or
// case-insensitive name. A number is tried as a position first.
func lookup[K interface {
	comparable
	fmt.Stringer
}, V any](m *orderedmap.Map[K, V], ref string, name func(V) string) (K, V, bool) {
	var zeroK K
	var zeroV V

	if n, err := strconv.Atoi(ref); err == nil {
		if k, ok := m.KeyAtOrder(n - 1); ok {
			v, _ := m.Get(k)
			return k, v, true
		}
	}
	for k, v := range m.All() {
		if k.String() == ref || strings.EqualFold(name(v), ref) {
			return k, v, true
		}
	}
	return zeroK, zeroV, false
}

func findProject(db *document.Database, ref string) (document.ProjectID, *document.Project, error) {
	id, p, ok := lookup(db, ref, func(p *document.Project) string { return p.Name })
	if !ok {
		return id, nil, fmt.Errorf("project %q not found", ref)
	}
	return id, p, nil
}

func findTask(p *document.Project, c document.Category, ref string) (document.TaskID, *document.Task, error) {
	id, t, ok := lookup(p.Tasks(c), ref, func(t *document.Task) string { return t.Name })
	if !ok {
		return id, nil, fmt.Errorf("%s task %q not found in project %q", c, ref, p.Name)
	}
	return id, t, nil
}

// findAnyTask searches open tasks first, then done and derived ones.
func findAnyTask(p *document.Project, ref string) (*document.Task, error) {
	for _, c := range []document.Category{document.CategoryOpen, document.CategoryDone, document.CategoryDerived} {
		if _, t, err := findTask(p, c, ref); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task %q not found in project %q", ref, p.Name)
}

func findTag(p *document.Project, ref string) (document.TagID, *document.Tag, error) {
	id, t, ok := lookup(&p.Tags, ref, func(t *document.Tag) string { return t.Name })
	if !ok {
		return id, nil, fmt.Errorf("tag %q not found in project %q", ref, p.Name)
	}
	return id, t, nil
}

func parseCategory(s string) (document.Category, error) {
	switch strings.ToLower(s) {
	case "", "open":
		return document.CategoryOpen, nil
	case "done":
		return document.CategoryDone, nil
	case "derived":
		return document.CategoryDerived, nil
	default:
		return 0, fmt.Errorf("unknown category %q (open, done or derived)", s)
	}
}

// moveFlags selects one reordering of a moveEntry call.
type moveFlags struct {
	up, down, end bool
	to            int
	before        string
}

func (f moveFlags) count() int {
	n := 0
	for _, set := range []bool{f.up, f.down, f.end, f.to > 0, f.before != ""} {
		if set {
			n++
		}
	}
	return n
}

// moveEntry applies f to key in m. before is resolved with resolve.
func moveEntry[K comparable, V any](m *orderedmap.Map[K, V], key K, f moveFlags, resolve func(string) (K, error)) error {
	if f.count() != 1 {
		return fmt.Errorf("exactly one of --up, --down, --to, --before or --end is required")
	}
	switch {
	case f.up:
		m.MoveUp(key)
	case f.down:
		m.MoveDown(key)
	case f.end:
		m.MoveToEnd(key)
	case f.to > 0:
		if f.to > m.Len() {
			return fmt.Errorf("position %d out of range (1-%d)", f.to, m.Len())
		}
		m.MoveTo(key, f.to-1)
	default:
		other, err := resolve(f.before)
		if err != nil {
			return err
		}
		m.MoveBeforeOther(key, other)
	}
	return nil
}
