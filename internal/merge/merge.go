// Package merge resolves a foreign todo snapshot against the local one using
// last-write-wins on Todo.LastModified. It holds no state and performs no I/O.
package merge

import (
	"sort"

	"github.com/nhle/todosync/internal/model"
)

// Result is the write set produced by a merge.
type Result struct {
	// Updates are remote records strictly newer than their local copy.
	Updates []model.Todo `json:"updates"`

	// Inserts are remote records whose id is unknown locally. Ids are kept.
	Inserts []model.Todo `json:"inserts"`

	// Deletes remove local records older than a remote tombstone.
	// Only produced by MergeWithTombstones.
	Deletes []model.Tombstone `json:"deletes,omitempty"`

	// Graves are remote tombstones to remember for ids with no local row.
	// Only produced by MergeWithTombstones.
	Graves []model.Tombstone `json:"graves,omitempty"`

	// Skipped counts remote records discarded because local won or tied.
	Skipped int `json:"skipped"`
}

// Empty reports whether applying r would change nothing.
func (r Result) Empty() bool {
	return len(r.Updates) == 0 && len(r.Inserts) == 0 &&
		len(r.Deletes) == 0 && len(r.Graves) == 0
}

// Changed returns the number of writes r would perform.
func (r Result) Changed() int {
	return len(r.Updates) + len(r.Inserts) + len(r.Deletes) + len(r.Graves)
}

// Merge compares remote against local by id. A remote record replaces the
// local one only when its LastModified is strictly greater; ties keep local.
// Ids absent locally become inserts. Local records missing from remote are
// never touched, and remote tombstone records are ignored.
func Merge(local, remote []model.Todo) Result {
	return merge(local, remote, nil, false)
}

// MergeWithTombstones is Merge with deletion propagation. graves holds the
// local tombstones. A remote tombstone deletes a local record it is strictly
// newer than, and a local tombstone blocks re-inserting an id unless the
// remote record was modified after the deletion.
func MergeWithTombstones(local, remote []model.Todo, graves []model.Tombstone) Result {
	return merge(local, remote, graves, true)
}

func merge(local, remote []model.Todo, graves []model.Tombstone, tombstones bool) Result {
	localByID := make(map[int64]model.Todo, len(local))
	for _, t := range local {
		localByID[t.ID] = t
	}

	graveByID := make(map[int64]int64, len(graves))
	for _, g := range graves {
		if g.DeletedAt > graveByID[g.ID] {
			graveByID[g.ID] = g.DeletedAt
		}
	}

	var res Result
	for _, r := range latestByID(remote) {
		if r.Deleted {
			if !tombstones {
				res.Skipped++
				continue
			}
			grave := model.Tombstone{ID: r.ID, DeletedAt: r.LastModified}
			if l, ok := localByID[r.ID]; ok {
				if r.LastModified > l.LastModified {
					res.Deletes = append(res.Deletes, grave)
				} else {
					res.Skipped++
				}
				continue
			}
			if at, ok := graveByID[r.ID]; ok && at >= r.LastModified {
				res.Skipped++
				continue
			}
			res.Graves = append(res.Graves, grave)
			continue
		}

		if l, ok := localByID[r.ID]; ok {
			if r.LastModified > l.LastModified {
				res.Updates = append(res.Updates, r)
			} else {
				res.Skipped++
			}
			continue
		}

		if tombstones {
			if at, ok := graveByID[r.ID]; ok && at >= r.LastModified {
				res.Skipped++
				continue
			}
		}
		res.Inserts = append(res.Inserts, r)
	}

	return res
}

// latestByID collapses duplicate ids to the record with the greatest
// LastModified (first one wins a tie) and returns them ordered by id.
func latestByID(todos []model.Todo) []model.Todo {
	byID := make(map[int64]model.Todo, len(todos))
	for _, t := range todos {
		if cur, ok := byID[t.ID]; ok && cur.LastModified >= t.LastModified {
			continue
		}
		byID[t.ID] = t
	}

	out := make([]model.Todo, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
