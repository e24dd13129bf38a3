package document

import (
	"slices"
	"time"

	"github.com/marmos91/dittotasks/pkg/orderedmap"
)

func sameDatabase(a, b *Database) bool {
	return sameMap(a, b, sameProject)
}

func sameMap[K comparable, V any](a, b *orderedmap.Map[K, V], eq func(V, V) bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Len() {
		ka, _ := a.KeyAtOrder(i)
		kb, _ := b.KeyAtOrder(i)
		if ka != kb {
			return false
		}
		va, _ := a.Get(ka)
		vb, _ := b.Get(kb)
		if !eq(va, vb) {
			return false
		}
	}
	return true
}

func sameProject(a, b *Project) bool {
	return a.Name == b.Name &&
		a.Color == b.Color &&
		a.SourceRoot == b.SourceRoot &&
		sameMap(&a.Tags, &b.Tags, sameTag) &&
		sameMap(&a.OpenTasks, &b.OpenTasks, sameTask) &&
		sameMap(&a.DoneTasks, &b.DoneTasks, sameTask) &&
		sameMap(&a.DerivedTasks, &b.DerivedTasks, sameTask)
}

func sameTag(a, b *Tag) bool {
	return *a == *b
}

// sameTask ignores TrackingSince.
func sameTask(a, b *Task) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		slices.Equal(a.Tags, b.Tags) &&
		sameOptionalTime(a.Due, b.Due) &&
		a.NeedsReview == b.NeedsReview &&
		a.TimeSpent == b.TimeSpent
}

func sameOptionalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
