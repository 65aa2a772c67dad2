package geofence

import "github.com/sells-group/storesync/internal/model"

// DiffResult holds the stores whose geofences must be created and deleted.
type DiffResult struct {
	New     []model.Store `json:"new"`
	Removed []model.Store `json:"removed"`
}

// Empty reports whether there is nothing to apply.
func (d DiffResult) Empty() bool {
	return len(d.New) == 0 && len(d.Removed) == 0
}

// Diff compares current against previous by Key. New holds current stores
// whose key is absent from previous; Removed holds previous stores whose key
// is absent from current. Keys present on both sides are left alone, even if
// the description changed. Each key appears at most once per side, as its
// first occurrence.
func Diff(current, previous []model.Store) DiffResult {
	cur := index(current)
	prev := index(previous)

	var d DiffResult
	for _, s := range unique(current) {
		if _, ok := prev[StoreKey(s)]; !ok {
			d.New = append(d.New, s)
		}
	}
	for _, s := range unique(previous) {
		if _, ok := cur[StoreKey(s)]; !ok {
			d.Removed = append(d.Removed, s)
		}
	}
	return d
}

func index(stores []model.Store) map[Key]struct{} {
	m := make(map[Key]struct{}, len(stores))
	for _, s := range stores {
		m[StoreKey(s)] = struct{}{}
	}
	return m
}

func unique(stores []model.Store) []model.Store {
	seen := make(map[Key]struct{}, len(stores))
	out := make([]model.Store, 0, len(stores))
	for _, s := range stores {
		k := StoreKey(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
