package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
)

func todo(id int64, day, content string, ts int64) model.Todo {
	return model.Todo{ID: id, Day: day, Content: content, LastModified: ts}
}

func TestMergeRemoteNewerWins(t *testing.T) {
	local := []model.Todo{todo(1, "Monday", "A", 100)}
	remote := []model.Todo{todo(1, "Tuesday", "B", 200)}

	res := Merge(local, remote)

	require.Len(t, res.Updates, 1)
	assert.Equal(t, "B", res.Updates[0].Content)
	assert.Equal(t, "Tuesday", res.Updates[0].Day)
	assert.Equal(t, int64(200), res.Updates[0].LastModified)
	assert.Empty(t, res.Inserts)
}

func TestMergeLocalWinsWhenRemoteOlderOrEqual(t *testing.T) {
	local := []model.Todo{todo(1, "Monday", "A", 100)}

	for _, ts := range []int64{50, 100} {
		res := Merge(local, []model.Todo{todo(1, "Monday", "B", ts)})
		assert.True(t, res.Empty(), "ts=%d", ts)
		assert.Equal(t, 1, res.Skipped, "ts=%d", ts)
	}
}

func TestMergeIsIdempotentOnOwnSnapshot(t *testing.T) {
	local := []model.Todo{
		todo(1, "Monday", "buy milk", 100),
		todo(2, "Friday", "call mom", 150),
	}

	res := Merge(local, local)

	assert.True(t, res.Empty())
	assert.Equal(t, 2, res.Skipped)
}

func TestMergeNeverDeletes(t *testing.T) {
	local := []model.Todo{todo(1, "Monday", "A", 100), todo(2, "Monday", "B", 100)}
	remote := []model.Todo{todo(2, "Monday", "B", 100)}

	res := Merge(local, remote)

	assert.True(t, res.Empty())
	assert.Empty(t, res.Deletes)
}

func TestMergeInsertsUnknownIDsUnchanged(t *testing.T) {
	remoteTodo := model.Todo{ID: 42, Day: "Sunday", Content: "water plants", Position: 3, LastModified: 77, Done: true}

	res := Merge(nil, []model.Todo{remoteTodo})

	require.Len(t, res.Inserts, 1)
	assert.Equal(t, remoteTodo, res.Inserts[0])
}

func TestMergeCollapsesDuplicateRemoteIDs(t *testing.T) {
	local := []model.Todo{todo(1, "Monday", "A", 100)}
	remote := []model.Todo{
		todo(1, "Monday", "older", 150),
		todo(1, "Monday", "newest", 300),
		todo(1, "Monday", "middle", 200),
	}

	res := Merge(local, remote)

	require.Len(t, res.Updates, 1)
	assert.Equal(t, "newest", res.Updates[0].Content)
}

func TestMergeIgnoresTombstonesByDefault(t *testing.T) {
	local := []model.Todo{todo(1, "Monday", "A", 100)}
	remote := []model.Todo{{ID: 1, LastModified: 500, Deleted: true}}

	res := Merge(local, remote)

	assert.True(t, res.Empty())
	assert.Equal(t, 1, res.Skipped)
}

func TestMergeWithTombstones(t *testing.T) {
	local := []model.Todo{
		todo(1, "Monday", "deleted remotely", 100),
		todo(2, "Monday", "edited after remote delete", 400),
	}
	graves := []model.Tombstone{{ID: 3, DeletedAt: 300}, {ID: 4, DeletedAt: 100}}
	remote := []model.Todo{
		{ID: 1, LastModified: 200, Deleted: true},
		{ID: 2, LastModified: 300, Deleted: true},
		todo(3, "Tuesday", "stale copy of a deleted todo", 250),
		todo(4, "Tuesday", "edited after local delete", 150),
		{ID: 5, LastModified: 90, Deleted: true},
	}

	res := MergeWithTombstones(local, remote, graves)

	assert.Equal(t, []model.Tombstone{{ID: 1, DeletedAt: 200}}, res.Deletes)
	assert.Equal(t, []model.Tombstone{{ID: 5, DeletedAt: 90}}, res.Graves)
	require.Len(t, res.Inserts, 1)
	assert.Equal(t, int64(4), res.Inserts[0].ID)
	assert.Empty(t, res.Updates)
	assert.Equal(t, 2, res.Skipped)
}
