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

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testProp = `ro.system.build.version.incremental=1.1.0
ro.system.build.version.sdk=34
ro.system.build.date.utc=1756500000
ro.system.build.date=Sun Aug 30 00:00:00 UTC 2026
ro.system.build.fingerprint=Daria/lemon/lemon:14/UQ1A/1.1.0:user/release-keys
ro.product.system.brand=Daria
ro.product.system.device=lemon
ro.product.system.model=Lemon Pro
ro.dariaos.version=2.1
`

func newIngestFixture(t *testing.T) (*IngestLogic, *catalog.Store, *config.Config) {
	t.Helper()
	conf := &config.Config{}
	conf.Paths.Uploads = t.TempDir()
	conf.Paths.Data = t.TempDir()
	for _, dir := range []string{TempUploadDir(conf), FullPackageDir(conf), DeltaPackageDir(conf)} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	store, err := catalog.NewStore(filepath.Join(conf.Paths.Data, "catalog.json"), zap.NewNop())
	require.NoError(t, err)

	logs := logstore.NewSet(t.TempDir(), zap.NewNop())
	t.Cleanup(logs.Close)

	return NewIngestLogic(conf, store, cache.NewBuildsCacheGroup(), logs, zap.NewNop()), store, conf
}

func stageUpload(t *testing.T, conf *config.Config, filename, content string) model.UploadedFile {
	t.Helper()
	path := filepath.Join(TempUploadDir(conf), filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return model.UploadedFile{
		Filename: filename,
		TempPath: path,
		Size:     int64(len(content)),
		MD5:      "d41d8cd98f00b204e9800998ecf8427e",
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func registerFull(t *testing.T, store *catalog.Store, incremental string) model.BuildRecord {
	t.Helper()
	record, err := store.AddBuild(model.BuildRecord{
		Codename: "lemon",
		Channel:  "stable",
		Type:     model.BuildTypeFull,
		Publish:  true,
		Payload:  model.Payload{Incremental: incremental, Timestamp: 100},
	})
	require.NoError(t, err)
	return record
}

func TestIngestFullOnly(t *testing.T) {
	l, store, conf := newIngestFixture(t)

	fullName := "dariaos-2-20260101-stable-lemon-1.1.0-HOME-signed.zip"
	param := &model.IngestParam{
		PropContent:   testProp,
		ChangelogHTML: "<h1>Changes</h1>",
		Full:          stageUpload(t, conf, fullName, "full package bytes"),
		PublishFull:   true,
		MandatoryFull: true,
		CreatedBy:     "maintainer",
	}

	result, err := l.Ingest(context.Background(), param)
	require.NoError(t, err)
	require.Nil(t, result.Delta)
	require.Equal(t, "full", result.Full.UpdateType)
	require.Equal(t, "lemon", result.Full.Codename)
	require.Equal(t, "stable", result.Full.Channel)
	require.True(t, result.Full.Publish)
	require.True(t, result.Full.Mandatory)
	require.Equal(t, "1.1.0", result.Full.Payload.Incremental)
	require.Equal(t, "34", result.Full.Payload.APILevel)
	require.Equal(t, int64(1756500000), result.Full.Payload.Datetime)
	require.GreaterOrEqual(t, result.Full.Payload.Timestamp, result.Full.Payload.Datetime)
	require.Equal(t, "2.1", result.Full.Payload.Version)
	require.Equal(t,
		base64.StdEncoding.EncodeToString([]byte("<h1>Changes</h1>")),
		result.Full.Payload.Changes)

	require.FileExists(t, filepath.Join(FullPackageDir(conf), fullName))
	require.Empty(t, dirEntries(t, TempUploadDir(conf)))

	_, found := store.FindByIncremental("lemon", "stable", "1.1.0", model.BuildTypeFull)
	require.True(t, found)
}

func TestIngestFullAndDelta(t *testing.T) {
	l, store, conf := newIngestFixture(t)
	registerFull(t, store, "1.0.0")

	fullName := "dariaos-2-20260101-stable-lemon-1.1.0-HOME-signed.zip"
	deltaName := "dariaos-2-20260101-stable-lemon-1.0.0+1.1.0-HOME-signed.zip"
	delta := stageUpload(t, conf, deltaName, "delta package bytes")
	param := &model.IngestParam{
		PropContent:   testProp,
		ChangelogHTML: "<p>delta friendly</p>",
		Full:          stageUpload(t, conf, fullName, "full package bytes"),
		Delta:         &delta,
		PublishFull:   true,
		PublishDelta:  true,
		CreatedBy:     "maintainer",
	}

	result, err := l.Ingest(context.Background(), param)
	require.NoError(t, err)
	require.NotNil(t, result.Delta)
	require.Equal(t, "delta", result.Delta.UpdateType)
	require.Equal(t, "1.0.0", result.Delta.BaseIncremental)
	require.Equal(t, "1.1.0", result.Delta.Payload.Incremental)
	require.Equal(t, result.Full.ID, result.Delta.ChangelogSourceID)
	require.Equal(t, result.Full.Payload.Changes, result.Delta.Payload.Changes)

	require.FileExists(t, filepath.Join(FullPackageDir(conf), fullName))
	require.FileExists(t, filepath.Join(DeltaPackageDir(conf), deltaName))
	require.Empty(t, dirEntries(t, TempUploadDir(conf)))
}

func TestIngestDuplicateFullLeavesNoTrace(t *testing.T) {
	l, store, conf := newIngestFixture(t)
	registerFull(t, store, "1.1.0")
	revisionBefore := store.Revision()

	fullName := "dariaos-2-20260101-stable-lemon-1.1.0-HOME-signed.zip"
	param := &model.IngestParam{
		PropContent: testProp,
		Full:        stageUpload(t, conf, fullName, "full package bytes"),
	}

	_, err := l.Ingest(context.Background(), param)
	require.ErrorIs(t, err, errs.ErrDuplicateFullBuild)

	require.Empty(t, dirEntries(t, FullPackageDir(conf)))
	require.Empty(t, dirEntries(t, TempUploadDir(conf)))
	require.Equal(t, revisionBefore, store.Revision())
}

func TestIngestCodenameMismatch(t *testing.T) {
	l, _, conf := newIngestFixture(t)

	fullName := "dariaos-2-20260101-stable-orange-1.1.0-HOME-signed.zip"
	param := &model.IngestParam{
		PropContent: testProp,
		Full:        stageUpload(t, conf, fullName, "full package bytes"),
	}

	_, err := l.Ingest(context.Background(), param)
	require.ErrorIs(t, err, errs.ErrInvalidParams)
	require.Empty(t, dirEntries(t, TempUploadDir(conf)))
}

func TestIngestDeltaBaseUnknownRollsBackFull(t *testing.T) {
	l, store, conf := newIngestFixture(t)

	fullName := "dariaos-2-20260101-stable-lemon-1.1.0-HOME-signed.zip"
	deltaName := "dariaos-2-20260101-stable-lemon-1.0.0+1.1.0-HOME-signed.zip"
	delta := stageUpload(t, conf, deltaName, "delta package bytes")
	param := &model.IngestParam{
		PropContent: testProp,
		Full:        stageUpload(t, conf, fullName, "full package bytes"),
		Delta:       &delta,
	}

	_, err := l.Ingest(context.Background(), param)
	require.ErrorIs(t, err, errs.ErrDeltaBaseUnknown)

	require.Empty(t, dirEntries(t, FullPackageDir(conf)))
	require.Empty(t, dirEntries(t, DeltaPackageDir(conf)))
	require.Empty(t, dirEntries(t, TempUploadDir(conf)))
	_, found := store.FindByIncremental("lemon", "stable", "1.1.0", model.BuildTypeFull)
	require.False(t, found)
}

func TestIngestDeltaAdjacencyViolation(t *testing.T) {
	l, store, conf := newIngestFixture(t)
	registerFull(t, store, "1.0.0")
	registerFull(t, store, "1.0.5.x")

	fullName := "dariaos-2-20260101-stable-lemon-1.1.0-HOME-signed.zip"
	deltaName := "dariaos-2-20260101-stable-lemon-1.0.0+1.1.0-HOME-signed.zip"
	delta := stageUpload(t, conf, deltaName, "delta package bytes")
	param := &model.IngestParam{
		PropContent: testProp,
		Full:        stageUpload(t, conf, fullName, "full package bytes"),
		Delta:       &delta,
	}

	_, err := l.Ingest(context.Background(), param)
	require.ErrorIs(t, err, errs.ErrDeltaNotAdjacent)

	require.Empty(t, dirEntries(t, FullPackageDir(conf)))
	require.Empty(t, dirEntries(t, DeltaPackageDir(conf)))
	require.Empty(t, dirEntries(t, TempUploadDir(conf)))
	_, found := store.FindByIncremental("lemon", "stable", "1.1.0", model.BuildTypeFull)
	require.False(t, found)
}

func TestIngestDeltaDowngradeRejected(t *testing.T) {
	l, store, conf := newIngestFixture(t)
	registerFull(t, store, "2.0.0")

	fullName := "dariaos-2-20260101-stable-lemon-1.1.0-HOME-signed.zip"
	deltaName := "dariaos-2-20260101-stable-lemon-2.0.0+1.1.0-HOME-signed.zip"
	delta := stageUpload(t, conf, deltaName, "delta package bytes")
	param := &model.IngestParam{
		PropContent: testProp,
		Full:        stageUpload(t, conf, fullName, "full package bytes"),
		Delta:       &delta,
	}

	_, err := l.Ingest(context.Background(), param)
	require.ErrorIs(t, err, errs.ErrInvalidParams)

	require.Empty(t, dirEntries(t, FullPackageDir(conf)))
	require.Empty(t, dirEntries(t, DeltaPackageDir(conf)))
	require.Empty(t, dirEntries(t, TempUploadDir(conf)))
	_, found := store.FindByIncremental("lemon", "stable", "1.1.0", model.BuildTypeFull)
	require.False(t, found)
}

func TestIngestDuplicateDeltaRollsBackFull(t *testing.T) {
	l, store, conf := newIngestFixture(t)
	registerFull(t, store, "1.0.0")
	_, err := store.AddBuild(model.BuildRecord{
		Codename:        "lemon",
		Channel:         "stable",
		Type:            model.BuildTypeDelta,
		BaseIncremental: "1.0.0",
		Payload:         model.Payload{Incremental: "1.1.0", Timestamp: 100},
	})
	require.NoError(t, err)

	fullName := "dariaos-2-20260101-stable-lemon-1.1.0-HOME-signed.zip"
	deltaName := "dariaos-2-20260101-stable-lemon-1.0.0+1.1.0-HOME-signed.zip"
	delta := stageUpload(t, conf, deltaName, "delta package bytes")
	param := &model.IngestParam{
		PropContent: testProp,
		Full:        stageUpload(t, conf, fullName, "full package bytes"),
		Delta:       &delta,
	}

	_, err = l.Ingest(context.Background(), param)
	require.ErrorIs(t, err, errs.ErrDuplicateDeltaBuild)

	require.Empty(t, dirEntries(t, FullPackageDir(conf)))
	require.Empty(t, dirEntries(t, DeltaPackageDir(conf)))
	_, found := store.FindByIncremental("lemon", "stable", "1.1.0", model.BuildTypeFull)
	require.False(t, found)
}
