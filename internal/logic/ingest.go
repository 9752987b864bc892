package logic

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dariaos/ota-backend/internal/cache"
	"github.com/dariaos/ota-backend/internal/catalog"
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/metrics"
	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/pkg/errs"
	"github.com/dariaos/ota-backend/internal/pkg/fileops"
	"github.com/dariaos/ota-backend/internal/pkg/naming"
	"github.com/dariaos/ota-backend/internal/pkg/props"
	"github.com/dariaos/ota-backend/internal/vercomp"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Package files live below the uploads root, split by build type. Uploads
// land in tmp first and are moved into place only after validation.
func TempUploadDir(conf *config.Config) string {
	return filepath.Join(conf.Paths.Uploads, "tmp")
}

func FullPackageDir(conf *config.Config) string {
	return filepath.Join(conf.Paths.Uploads, "full")
}

func DeltaPackageDir(conf *config.Config) string {
	return filepath.Join(conf.Paths.Uploads, "delta")
}

// IngestLogic commits a firmware upload into the catalog: all resulting
// records and files land together, or a failed attempt leaves no trace.
type IngestLogic struct {
	conf       *config.Config
	store      *catalog.Store
	cacheGroup *cache.BuildsCacheGroup
	logs       *logstore.Set
	logger     *zap.Logger
}

func NewIngestLogic(
	conf *config.Config,
	store *catalog.Store,
	cacheGroup *cache.BuildsCacheGroup,
	logs *logstore.Set,
	logger *zap.Logger,
) *IngestLogic {
	return &IngestLogic{
		conf:       conf,
		store:      store,
		cacheGroup: cacheGroup,
		logs:       logs,
		logger:     logger,
	}
}

type createdRecord struct {
	codename string
	channel  string
	buildID  string
}

// ingestAttempt tracks everything one attempt has touched so a failure at
// any later step can put the file system and catalog back.
type ingestAttempt struct {
	store  *catalog.Store
	logger *zap.Logger

	tempPaths   []string
	placedPaths []string
	created     []createdRecord
}

func (a *ingestAttempt) moved(tempPath, finalPath string) {
	for i, p := range a.tempPaths {
		if p == tempPath {
			a.tempPaths = append(a.tempPaths[:i], a.tempPaths[i+1:]...)
			break
		}
	}
	a.placedPaths = append(a.placedPaths, finalPath)
}

func (a *ingestAttempt) rollback() {
	for _, path := range append(a.placedPaths, a.tempPaths...) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("Failed to remove file during ingestion rollback",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}
	for _, rec := range a.created {
		if _, err := a.store.DeleteBuild(rec.codename, rec.channel, rec.buildID); err != nil {
			a.logger.Warn("Failed to remove catalog record during ingestion rollback",
				zap.String("buildId", rec.buildID),
				zap.Error(err),
			)
		}
	}
}

func (l *IngestLogic) Ingest(ctx context.Context, param *model.IngestParam) (result *model.IngestResult, err error) {
	attempt := &ingestAttempt{
		store:     l.store,
		logger:    l.logger,
		tempPaths: []string{param.Full.TempPath},
	}
	if param.Delta != nil {
		attempt.tempPaths = append(attempt.tempPaths, param.Delta.TempPath)
	}
	defer func() {
		if err != nil {
			attempt.rollback()
			metrics.Ingestions.WithLabelValues("failure").Inc()
		}
	}()

	properties := props.Parse(param.PropContent)
	if perr := props.RequireKeys(properties, props.RequiredBuildKeys); perr != nil {
		return nil, errs.ErrInvalidParams.WithMessage(perr.Error())
	}

	fullInfo, perr := naming.ParseFull(param.Full.Filename)
	if perr != nil {
		return nil, errs.ErrInvalidParams.WithMessage(perr.Error())
	}
	incremental := properties["ro.system.build.version.incremental"]
	device := properties["ro.product.system.device"]
	if fullInfo.Codename != device {
		return nil, errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("filename codename %q does not match device %q from prop file", fullInfo.Codename, device))
	}
	if fullInfo.Incremental != incremental {
		return nil, errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("filename incremental %q does not match %q from prop file", fullInfo.Incremental, incremental))
	}

	if _, exists := l.store.FindByIncremental(fullInfo.Codename, fullInfo.Channel, incremental, model.BuildTypeFull); exists {
		return nil, errs.ErrDuplicateFullBuild
	}

	required := param.Full.Size
	if param.Delta != nil {
		required += param.Delta.Size
	}
	ok, remaining, serr := fileops.CheckHeadroom(l.conf.Paths.Uploads, required)
	if serr != nil {
		return nil, errs.NewUnexpected("failed to check storage headroom", serr)
	}
	if !ok {
		return nil, errs.ErrInsufficientStorage.WithDetails(map[string]int64{
			"requiredBytes": required,
			"projectedFree": remaining,
		})
	}

	fullPath := filepath.Join(FullPackageDir(l.conf), param.Full.Filename)
	if err := movePackage(param.Full.TempPath, fullPath); err != nil {
		return nil, err
	}
	attempt.moved(param.Full.TempPath, fullPath)

	changes := base64.StdEncoding.EncodeToString([]byte(param.ChangelogHTML))
	buildTime := parseEpoch(properties["ro.system.build.date.utc"])
	// datetime carries the build epoch from the prop file; timestamp
	// records when the build entered the catalog and keys listing order
	uploadTime := time.Now().Unix()

	fullRecord, aerr := l.store.AddBuild(model.BuildRecord{
		Codename:  fullInfo.Codename,
		Channel:   fullInfo.Channel,
		Type:      model.BuildTypeFull,
		Publish:   param.PublishFull,
		Mandatory: param.MandatoryFull,
		CreatedBy: param.CreatedBy,
		File: &model.FileRef{
			Path:   filepath.Join("full", param.Full.Filename),
			Size:   param.Full.Size,
			MD5:    param.Full.MD5,
			SHA256: param.Full.SHA256,
		},
		Payload: model.Payload{
			Incremental: incremental,
			APILevel:    properties["ro.system.build.version.sdk"],
			URL:         param.FullURL,
			Datetime:    buildTime,
			MD5Sum:      param.Full.MD5,
			Changes:     changes,
			Channel:     fullInfo.Channel,
			Filename:    param.Full.Filename,
			RomType:     fullInfo.Channel,
			Timestamp:   uploadTime,
			Version:     properties["ro.dariaos.version"],
			Size:        param.Full.Size,
		},
	})
	if aerr != nil {
		if errors.Is(aerr, catalog.ErrDuplicate) {
			return nil, errs.ErrDuplicateFullBuild
		}
		return nil, errs.NewUnexpected("failed to persist full build record", aerr)
	}
	attempt.created = append(attempt.created, createdRecord{fullRecord.Codename, fullRecord.Channel, fullRecord.ID})

	result = &model.IngestResult{
		Full: model.BuildDetail{BuildRecord: fullRecord, UpdateType: string(model.BuildTypeFull)},
	}

	if param.Delta != nil {
		deltaRecord, derr := l.ingestDelta(param, fullRecord, changes, buildTime, uploadTime, attempt)
		if derr != nil {
			return nil, derr
		}
		result.Delta = &model.BuildDetail{BuildRecord: deltaRecord, UpdateType: string(model.BuildTypeDelta)}
	}

	l.cacheGroup.Evict(fullRecord.Codename, fullRecord.Channel)
	metrics.Ingestions.WithLabelValues("success").Inc()
	l.logs.Admin.Append(&logstore.AdminAuditEntry{
		Action:        "ingest",
		Username:      param.CreatedBy,
		Codename:      fullRecord.Codename,
		Channel:       fullRecord.Channel,
		BuildID:       fullRecord.ID,
		Incremental:   fullRecord.Payload.Incremental,
		DeltaBase:     deltaBase(result.Delta),
		IP:            param.Meta.IP,
		XForwardedFor: param.Meta.XForwardedFor,
		UserAgent:     param.Meta.UserAgent,
	})
	return result, nil
}

func (l *IngestLogic) ingestDelta(
	param *model.IngestParam,
	full model.BuildRecord,
	changes string,
	buildTime int64,
	uploadTime int64,
	attempt *ingestAttempt,
) (model.BuildRecord, error) {
	info, perr := naming.ParseDelta(param.Delta.Filename)
	if perr != nil {
		return model.BuildRecord{}, errs.ErrInvalidParams.WithMessage(perr.Error())
	}
	if info.Codename != full.Codename {
		return model.BuildRecord{}, errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("delta codename %q does not match full build codename %q", info.Codename, full.Codename))
	}
	if info.Incremental != full.Payload.Incremental {
		return model.BuildRecord{}, errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("delta target %q does not match full build incremental %q", info.Incremental, full.Payload.Incremental))
	}

	if _, exists := l.store.FindByIncremental(full.Codename, full.Channel, info.BaseIncremental, model.BuildTypeFull); !exists {
		return model.BuildRecord{}, errs.ErrDeltaBaseUnknown
	}
	if !vercomp.IsNewerThan(info.Incremental, info.BaseIncremental) {
		return model.BuildRecord{}, errs.ErrInvalidParams.WithMessage(
			fmt.Sprintf("delta target %q must be newer than base %q", info.Incremental, info.BaseIncremental))
	}

	for _, b := range l.store.ListBuilds(full.Codename, full.Channel) {
		if !b.IsFull() {
			continue
		}
		inc := b.Payload.Incremental
		if vercomp.IsNewerThan(inc, info.BaseIncremental) && vercomp.IsNewerThan(info.Incremental, inc) {
			return model.BuildRecord{}, errs.ErrDeltaNotAdjacent.WithDetails(map[string]string{
				"base":        info.BaseIncremental,
				"target":      info.Incremental,
				"intervening": inc,
			})
		}
	}
	for _, b := range l.store.ListBuilds(full.Codename, full.Channel) {
		if b.IsDelta() &&
			vercomp.Compare(b.BaseIncremental, info.BaseIncremental) == vercomp.Equal &&
			vercomp.Compare(b.Payload.Incremental, info.Incremental) == vercomp.Equal {
			return model.BuildRecord{}, errs.ErrDuplicateDeltaBuild
		}
	}

	deltaPath := filepath.Join(DeltaPackageDir(l.conf), param.Delta.Filename)
	if err := movePackage(param.Delta.TempPath, deltaPath); err != nil {
		return model.BuildRecord{}, err
	}
	attempt.moved(param.Delta.TempPath, deltaPath)

	record, aerr := l.store.AddBuild(model.BuildRecord{
		Codename:          full.Codename,
		Channel:           full.Channel,
		Type:              model.BuildTypeDelta,
		BaseIncremental:   info.BaseIncremental,
		Publish:           param.PublishDelta,
		CreatedBy:         param.CreatedBy,
		ChangelogSourceID: full.ID,
		File: &model.FileRef{
			Path:   filepath.Join("delta", param.Delta.Filename),
			Size:   param.Delta.Size,
			MD5:    param.Delta.MD5,
			SHA256: param.Delta.SHA256,
		},
		Payload: model.Payload{
			Incremental: info.Incremental,
			APILevel:    full.Payload.APILevel,
			URL:         param.DeltaURL,
			Datetime:    buildTime,
			MD5Sum:      param.Delta.MD5,
			Changes:     changes,
			Channel:     full.Channel,
			Filename:    param.Delta.Filename,
			RomType:     full.Channel,
			Timestamp:   uploadTime,
			Version:     full.Payload.Version,
			Size:        param.Delta.Size,
		},
	})
	if aerr != nil {
		if errors.Is(aerr, catalog.ErrDuplicate) {
			return model.BuildRecord{}, errs.ErrDuplicateDeltaBuild
		}
		return model.BuildRecord{}, errs.NewUnexpected("failed to persist delta build record", aerr)
	}
	attempt.created = append(attempt.created, createdRecord{record.Codename, record.Channel, record.ID})
	return record, nil
}

func movePackage(tempPath, finalPath string) error {
	if err := fileops.MoveNoReplace(tempPath, finalPath); err != nil {
		if errors.Is(err, fileops.ErrTargetExists) {
			return errs.ErrPackageFileExists.WithDetails(filepath.Base(finalPath))
		}
		return errs.NewUnexpected("failed to store package file", err)
	}
	return nil
}

func parseEpoch(raw string) int64 {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func deltaBase(detail *model.BuildDetail) string {
	if detail == nil {
		return ""
	}
	return detail.BaseIncremental
}
