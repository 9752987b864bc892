package logic

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/dariaos/ota-backend/internal/cache"
	"github.com/dariaos/ota-backend/internal/catalog"
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/pkg/errs"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBuildsFixture(t *testing.T) (*BuildsLogic, *catalog.Store, *config.Config) {
	t.Helper()
	conf := &config.Config{}
	conf.Paths.Uploads = t.TempDir()
	conf.Paths.Data = t.TempDir()

	store, err := catalog.NewStore(filepath.Join(conf.Paths.Data, "catalog.json"), zap.NewNop())
	require.NoError(t, err)

	logs := logstore.NewSet(t.TempDir(), zap.NewNop())
	t.Cleanup(logs.Close)

	return NewBuildsLogic(conf, store, cache.NewBuildsCacheGroup(), logs, zap.NewNop()), store, conf
}

func TestListCodenames(t *testing.T) {
	l, store, _ := newBuildsFixture(t)
	for _, pair := range [][2]string{{"lemon", "stable"}, {"lemon", "beta"}, {"orange", "stable"}} {
		_, err := store.AddBuild(model.BuildRecord{
			Codename: pair[0],
			Channel:  pair[1],
			Type:     model.BuildTypeFull,
			Payload:  model.Payload{Incremental: "1.0.0", Timestamp: 100},
		})
		require.NoError(t, err)
	}

	got := l.ListCodenames(context.Background())
	require.Equal(t, []model.CodenameChannels{
		{Codename: "lemon", Channels: []string{"beta", "stable"}},
		{Codename: "orange", Channels: []string{"stable"}},
	}, got)
}

func TestPatchPublishFlag(t *testing.T) {
	l, store, _ := newBuildsFixture(t)
	record, err := store.AddBuild(model.BuildRecord{
		Codename: "lemon",
		Channel:  "stable",
		Type:     model.BuildTypeFull,
		Payload:  model.Payload{Incremental: "1.0.0", Timestamp: 100},
	})
	require.NoError(t, err)

	detail, err := l.Patch(context.Background(), &model.PatchBuildParam{
		Codename: "lemon",
		Channel:  "stable",
		BuildID:  record.ID,
		Publish:  lo.ToPtr(true),
		Username: "maintainer",
	})
	require.NoError(t, err)
	require.True(t, detail.Publish)

	reloaded, err := store.GetBuild("lemon", "stable", record.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Publish)
}

func TestPatchChangelogFansOutToDeltas(t *testing.T) {
	l, store, _ := newBuildsFixture(t)
	full, err := store.AddBuild(model.BuildRecord{
		Codename: "lemon",
		Channel:  "stable",
		Type:     model.BuildTypeFull,
		Payload:  model.Payload{Incremental: "1.1.0", Timestamp: 200},
	})
	require.NoError(t, err)
	delta, err := store.AddBuild(model.BuildRecord{
		Codename:          "lemon",
		Channel:           "stable",
		Type:              model.BuildTypeDelta,
		BaseIncremental:   "1.0.0",
		ChangelogSourceID: full.ID,
		Payload:           model.Payload{Incremental: "1.1.0", Timestamp: 200},
	})
	require.NoError(t, err)
	unrelated, err := store.AddBuild(model.BuildRecord{
		Codename:        "lemon",
		Channel:         "stable",
		Type:            model.BuildTypeDelta,
		BaseIncremental: "0.9.0",
		Payload:         model.Payload{Incremental: "1.0.0", Timestamp: 100},
	})
	require.NoError(t, err)

	_, err = l.Patch(context.Background(), &model.PatchBuildParam{
		Codename:    "lemon",
		Channel:     "stable",
		BuildID:     full.ID,
		ChangesHTML: lo.ToPtr("<p>rewritten</p>"),
		Username:    "maintainer",
	})
	require.NoError(t, err)

	encoded := base64.StdEncoding.EncodeToString([]byte("<p>rewritten</p>"))
	patchedDelta, err := store.GetBuild("lemon", "stable", delta.ID)
	require.NoError(t, err)
	require.Equal(t, encoded, patchedDelta.Payload.Changes)

	untouched, err := store.GetBuild("lemon", "stable", unrelated.ID)
	require.NoError(t, err)
	require.Empty(t, untouched.Payload.Changes)
}

func TestPatchDeltaChangelogRejected(t *testing.T) {
	l, store, _ := newBuildsFixture(t)
	delta, err := store.AddBuild(model.BuildRecord{
		Codename:        "lemon",
		Channel:         "stable",
		Type:            model.BuildTypeDelta,
		BaseIncremental: "1.0.0",
		Payload:         model.Payload{Incremental: "1.1.0", Timestamp: 200},
	})
	require.NoError(t, err)

	_, err = l.Patch(context.Background(), &model.PatchBuildParam{
		Codename:    "lemon",
		Channel:     "stable",
		BuildID:     delta.ID,
		ChangesHTML: lo.ToPtr("<p>nope</p>"),
	})
	require.ErrorIs(t, err, errs.ErrDeltaChangelogDerived)
}

func TestPatchUnknownBuild(t *testing.T) {
	l, _, _ := newBuildsFixture(t)
	_, err := l.Patch(context.Background(), &model.PatchBuildParam{
		Codename: "lemon",
		Channel:  "stable",
		BuildID:  "missing",
		Publish:  lo.ToPtr(true),
	})
	require.ErrorIs(t, err, errs.ErrBuildNotFound)
}

func TestDeleteRemovesRecordAndFile(t *testing.T) {
	l, store, conf := newBuildsFixture(t)

	require.NoError(t, os.MkdirAll(filepath.Join(conf.Paths.Uploads, "full"), 0o755))
	packagePath := filepath.Join(conf.Paths.Uploads, "full", "pkg.zip")
	require.NoError(t, os.WriteFile(packagePath, []byte("bytes"), 0o644))

	record, err := store.AddBuild(model.BuildRecord{
		Codename: "lemon",
		Channel:  "stable",
		Type:     model.BuildTypeFull,
		File:     &model.FileRef{Path: filepath.Join("full", "pkg.zip")},
		Payload:  model.Payload{Incremental: "1.0.0", Timestamp: 100},
	})
	require.NoError(t, err)

	removed, err := l.Delete(context.Background(), &model.DeleteBuildParam{
		Codename: "lemon",
		Channel:  "stable",
		BuildID:  record.ID,
		Username: "admin",
	})
	require.NoError(t, err)
	require.True(t, removed)
	require.NoFileExists(t, packagePath)

	removed, err = l.Delete(context.Background(), &model.DeleteBuildParam{
		Codename: "lemon",
		Channel:  "stable",
		BuildID:  record.ID,
		Username: "admin",
	})
	require.NoError(t, err)
	require.False(t, removed)
}
