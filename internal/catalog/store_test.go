package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dariaos/ota-backend/internal/model"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	store, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	return store, path
}

func fullBuild(incremental string, timestamp int64) model.BuildRecord {
	return model.BuildRecord{
		Codename: "sunfish",
		Channel:  "stable",
		Type:     model.BuildTypeFull,
		Payload: model.Payload{
			Incremental: incremental,
			Timestamp:   timestamp,
		},
		Publish: true,
	}
}

func TestAddAndListBuilds(t *testing.T) {
	store, _ := newTestStore(t)

	older, err := store.AddBuild(fullBuild("1.0.0", 100))
	require.NoError(t, err)
	require.NotEmpty(t, older.ID)
	require.Equal(t, older.ID, older.Payload.ID)
	require.Equal(t, "system", older.CreatedBy)
	require.NotZero(t, older.CreatedAt)

	newer, err := store.AddBuild(fullBuild("1.1.0", 200))
	require.NoError(t, err)

	builds := store.ListBuilds("sunfish", "stable")
	require.Len(t, builds, 2)
	// payload timestamp descending
	require.Equal(t, newer.ID, builds[0].ID)
	require.Equal(t, older.ID, builds[1].ID)

	require.Empty(t, store.ListBuilds("unknown", "stable"))
	require.Empty(t, store.ListBuilds("sunfish", "unknown"))
}

func TestAddBuildDuplicateFull(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AddBuild(fullBuild("1.0.0", 100))
	require.NoError(t, err)

	// equal after qualifier stripping counts as the same incremental
	_, err = store.AddBuild(fullBuild("V1.0.0.9999", 200))
	require.ErrorIs(t, err, ErrDuplicate)
	require.Len(t, store.ListBuilds("sunfish", "stable"), 1)
}

func TestAddBuildDuplicateDelta(t *testing.T) {
	store, _ := newTestStore(t)

	delta := fullBuild("1.1.0", 100)
	delta.Type = model.BuildTypeDelta
	delta.BaseIncremental = "1.0.0"

	_, err := store.AddBuild(delta)
	require.NoError(t, err)

	_, err = store.AddBuild(delta)
	require.ErrorIs(t, err, ErrDuplicate)

	// same target from a different base is a distinct delta
	other := delta
	other.BaseIncremental = "0.9.0"
	_, err = store.AddBuild(other)
	require.NoError(t, err)
}

func TestUpdateBuildPartialMerge(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.AddBuild(fullBuild("1.0.0", 100))
	require.NoError(t, err)

	publish := false
	url := "https://cdn.example.org/sunfish.zip"
	updated, err := store.UpdateBuild("sunfish", "stable", created.ID, UpdateBuild{
		Publish: &publish,
		URL:     &url,
	})
	require.NoError(t, err)
	require.False(t, updated.Publish)
	require.Equal(t, url, updated.Payload.URL)
	// untouched fields survive the merge
	require.Equal(t, "1.0.0", updated.Payload.Incremental)
	require.Equal(t, created.Payload.Timestamp, updated.Payload.Timestamp)
	require.GreaterOrEqual(t, updated.UpdatedAt, created.UpdatedAt)

	_, err = store.UpdateBuild("sunfish", "stable", "missing", UpdateBuild{Publish: &publish})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBuildIdempotent(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.AddBuild(fullBuild("1.0.0", 100))
	require.NoError(t, err)

	removed, err := store.DeleteBuild("sunfish", "stable", created.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = store.DeleteBuild("sunfish", "stable", created.ID)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestSnapshotReload(t *testing.T) {
	store, path := newTestStore(t)

	created, err := store.AddBuild(fullBuild("1.0.0", 100))
	require.NoError(t, err)
	firstRevision := store.Revision()
	require.Equal(t, int64(1), firstRevision)

	reloaded, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, firstRevision, reloaded.Revision())

	got, err := reloaded.GetBuild("sunfish", "stable", created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	store, path := newTestStore(t)

	const workers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AddBuild(fullBuild(fmt.Sprintf("1.%d.0", i), int64(i)))
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, store.ListBuilds("sunfish", "stable"), workers)
	require.Equal(t, int64(workers), store.Revision())

	// every write reached disk
	reloaded, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, reloaded.ListBuilds("sunfish", "stable"), workers)
}

func TestListCodenamesAndChannels(t *testing.T) {
	store, _ := newTestStore(t)

	b := fullBuild("1.0.0", 100)
	_, err := store.AddBuild(b)
	require.NoError(t, err)

	beta := fullBuild("1.0.0", 100)
	beta.Channel = "beta"
	_, err = store.AddBuild(beta)
	require.NoError(t, err)

	other := fullBuild("2.0.0", 100)
	other.Codename = "bramble"
	_, err = store.AddBuild(other)
	require.NoError(t, err)

	require.Equal(t, []string{"bramble", "sunfish"}, store.ListCodenames())
	require.Equal(t, []string{"beta", "stable"}, store.ListChannels("sunfish"))
	require.Empty(t, store.ListChannels("unknown"))
}
