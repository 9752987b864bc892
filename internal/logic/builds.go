package logic

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/dariaos/ota-backend/internal/cache"
	"github.com/dariaos/ota-backend/internal/catalog"
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/pkg/errs"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// BuildsLogic is the maintainer-facing view of the catalog.
type BuildsLogic struct {
	conf       *config.Config
	store      *catalog.Store
	cacheGroup *cache.BuildsCacheGroup
	logs       *logstore.Set
	logger     *zap.Logger
}

func NewBuildsLogic(
	conf *config.Config,
	store *catalog.Store,
	cacheGroup *cache.BuildsCacheGroup,
	logs *logstore.Set,
	logger *zap.Logger,
) *BuildsLogic {
	return &BuildsLogic{
		conf:       conf,
		store:      store,
		cacheGroup: cacheGroup,
		logs:       logs,
		logger:     logger,
	}
}

func (l *BuildsLogic) ListCodenames(ctx context.Context) []model.CodenameChannels {
	return lo.Map(l.store.ListCodenames(), func(codename string, _ int) model.CodenameChannels {
		return model.CodenameChannels{
			Codename: codename,
			Channels: l.store.ListChannels(codename),
		}
	})
}

func (l *BuildsLogic) ListBuilds(ctx context.Context, codename, channel string) []model.BuildDetail {
	return lo.Map(l.store.ListBuilds(codename, channel), func(b model.BuildRecord, _ int) model.BuildDetail {
		return model.BuildDetail{BuildRecord: b, UpdateType: string(b.Type)}
	})
}

// Patch merges the supplied fields into a build. A changelog edit on a
// full build fans out to every delta that derives its changelog from it;
// editing a delta's changelog directly is rejected.
func (l *BuildsLogic) Patch(ctx context.Context, param *model.PatchBuildParam) (*model.BuildDetail, error) {
	record, err := l.store.GetBuild(param.Codename, param.Channel, param.BuildID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, errs.ErrBuildNotFound
		}
		return nil, errs.NewUnexpected("failed to load build", err)
	}
	if param.ChangesHTML != nil && record.IsDelta() {
		return nil, errs.ErrDeltaChangelogDerived
	}

	updates := catalog.UpdateBuild{
		Publish:   param.Publish,
		Mandatory: param.Mandatory,
		URL:       param.URL,
	}
	var fields []string
	if param.Publish != nil {
		fields = append(fields, "publish")
	}
	if param.Mandatory != nil {
		fields = append(fields, "mandatory")
	}
	if param.URL != nil {
		fields = append(fields, "url")
	}
	if param.ChangesHTML != nil {
		encoded := base64.StdEncoding.EncodeToString([]byte(*param.ChangesHTML))
		updates.Changes = &encoded
		fields = append(fields, "changes")
	}
	if len(fields) == 0 {
		return nil, errs.ErrInvalidParams.WithMessage("no fields to update")
	}

	updated, err := l.store.UpdateBuild(param.Codename, param.Channel, param.BuildID, updates)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, errs.ErrBuildNotFound
		}
		return nil, errs.NewUnexpected("failed to update build", err)
	}

	if updates.Changes != nil && updated.IsFull() {
		l.propagateChangelog(param.Codename, param.Channel, updated.ID, *updates.Changes)
	}

	l.cacheGroup.Evict(param.Codename, param.Channel)
	l.logs.Admin.Append(&logstore.AdminAuditEntry{
		Action:        "patch-build",
		Username:      param.Username,
		Codename:      param.Codename,
		Channel:       param.Channel,
		BuildID:       param.BuildID,
		Incremental:   updated.Payload.Incremental,
		Fields:        fields,
		IP:            param.Meta.IP,
		XForwardedFor: param.Meta.XForwardedFor,
		UserAgent:     param.Meta.UserAgent,
	})
	return &model.BuildDetail{BuildRecord: updated, UpdateType: string(updated.Type)}, nil
}

// propagateChangelog pushes a full build's new changelog into every delta
// that back-references it. Deltas never own an independent copy, so a
// failed propagation is logged and retried on the next edit.
func (l *BuildsLogic) propagateChangelog(codename, channel, fullID, changes string) {
	for _, b := range l.store.ListBuilds(codename, channel) {
		if !b.IsDelta() || b.ChangelogSourceID != fullID {
			continue
		}
		if _, err := l.store.UpdateBuild(codename, channel, b.ID, catalog.UpdateBuild{Changes: &changes}); err != nil {
			l.logger.Error("Failed to propagate changelog to delta build",
				zap.String("deltaId", b.ID),
				zap.String("fullId", fullID),
				zap.Error(err),
			)
		}
	}
}

// Delete removes a build record and its package file. Removal is
// idempotent: deleting an absent build reports removed = false.
func (l *BuildsLogic) Delete(ctx context.Context, param *model.DeleteBuildParam) (bool, error) {
	record, err := l.store.GetBuild(param.Codename, param.Channel, param.BuildID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return false, nil
		}
		return false, errs.NewUnexpected("failed to load build", err)
	}

	removed, err := l.store.DeleteBuild(param.Codename, param.Channel, param.BuildID)
	if err != nil {
		return false, errs.NewUnexpected("failed to delete build", err)
	}
	if removed && record.File != nil {
		path := filepath.Join(l.conf.Paths.Uploads, record.File.Path)
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			l.logger.Warn("Failed to remove package file of deleted build",
				zap.String("path", path),
				zap.Error(rerr),
			)
		}
	}

	l.cacheGroup.Evict(param.Codename, param.Channel)
	l.logs.Admin.Append(&logstore.AdminAuditEntry{
		Action:        "delete-build",
		Username:      param.Username,
		Codename:      param.Codename,
		Channel:       param.Channel,
		BuildID:       param.BuildID,
		Incremental:   record.Payload.Incremental,
		IP:            param.Meta.IP,
		XForwardedFor: param.Meta.XForwardedFor,
		UserAgent:     param.Meta.UserAgent,
	})
	return removed, nil
}
