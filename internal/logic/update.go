package logic

import (
	"context"
	"strings"

	"github.com/dariaos/ota-backend/internal/cache"
	"github.com/dariaos/ota-backend/internal/catalog"
	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/metrics"
	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/pkg/urlkit"
	"github.com/dariaos/ota-backend/internal/vercomp"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// UpdateLogic decides which single package, if any, a reporting device
// should install next.
type UpdateLogic struct {
	conf       *config.Config
	store      *catalog.Store
	cacheGroup *cache.BuildsCacheGroup
	logs       *logstore.Set
	logger     *zap.Logger
}

func NewUpdateLogic(
	conf *config.Config,
	store *catalog.Store,
	cacheGroup *cache.BuildsCacheGroup,
	logs *logstore.Set,
	logger *zap.Logger,
) *UpdateLogic {
	return &UpdateLogic{
		conf:       conf,
		store:      store,
		cacheGroup: cacheGroup,
		logs:       logs,
		logger:     logger,
	}
}

// Check evaluates the update decision for one device report. The response
// envelope always carries a null id and at most one package descriptor.
func (l *UpdateLogic) Check(ctx context.Context, param *model.UpdateCheckParam) (*model.UpdateCheckResponse, error) {
	// catalog channels are stored lowercased; devices may report them in
	// any case
	channel := strings.ToLower(param.Channel)
	builds, err := l.publishedBuilds(param.Codename, channel)
	if err != nil {
		return nil, err
	}

	decision, chosen, mandatory := l.decide(builds, param.CurrentIncremental)

	resp := &model.UpdateCheckResponse{
		Response: []model.UpdatePayload{},
	}
	targets := []string{}
	if chosen != nil {
		payload := chosen.Payload
		payload.ID = ""
		payload.URL = l.resolveURL(payload)
		resp.Response = append(resp.Response, model.UpdatePayload{
			Payload:    payload,
			UpdateType: string(chosen.Type),
			Mandatory:  mandatory,
		})
		targets = append(targets, chosen.Payload.Incremental)
	}

	metrics.UpdateChecks.WithLabelValues(decision).Inc()
	l.logs.API.Append(&logstore.APIAccessEntry{
		Codename:           param.Codename,
		Channel:            channel,
		CurrentIncremental: param.CurrentIncremental,
		Serial:             param.Serial,
		Decision:           decision,
		TargetIncrementals: targets,
		Mandatory:          mandatory,
		IP:                 param.Meta.IP,
		XForwardedFor:      param.Meta.XForwardedFor,
		UserAgent:          param.Meta.UserAgent,
	})
	return resp, nil
}

func (l *UpdateLogic) publishedBuilds(codename, channel string) ([]model.BuildRecord, error) {
	key := l.cacheGroup.Key(codename, channel)
	builds, err := l.cacheGroup.PublishedBuilds.ComputeIfAbsent(key, func() ([]model.BuildRecord, error) {
		all := l.store.ListBuilds(codename, channel)
		return lo.Filter(all, func(b model.BuildRecord, _ int) bool {
			return b.Publish
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return *builds, nil
}

// decide returns the decision label, the chosen record (nil when no
// update applies) and the mandatory flag of the response.
func (l *UpdateLogic) decide(builds []model.BuildRecord, current string) (string, *model.BuildRecord, bool) {
	fulls := lo.Filter(builds, func(b model.BuildRecord, _ int) bool { return b.IsFull() })
	deltas := lo.Filter(builds, func(b model.BuildRecord, _ int) bool { return b.IsDelta() })

	if next := nextMandatory(fulls, current); next != nil {
		if delta := bestDeltaToward(deltas, current, next.Payload.Incremental); delta != nil {
			return model.DecisionDelta, delta, true
		}
		return model.DecisionFull, next, true
	}

	var candidate *model.BuildRecord
	for i := range fulls {
		b := &fulls[i]
		if !vercomp.IsNewerThan(b.Payload.Incremental, current) {
			continue
		}
		if candidate == nil || vercomp.IsNewerThan(b.Payload.Incremental, candidate.Payload.Incremental) {
			candidate = b
		}
	}

	if delta := firstDeltaFrom(deltas, current); delta != nil && candidate != nil {
		if fullIndexDistance(fulls, current, candidate.Payload.Incremental) <= l.conf.Update.MaximumDeltaDistance {
			return model.DecisionDelta, delta, false
		}
	}
	if candidate != nil {
		return model.DecisionFull, candidate, false
	}
	return model.DecisionNone, nil, false
}

// nextMandatory finds the earliest published mandatory full build
// strictly newer than the device's current version.
func nextMandatory(fulls []model.BuildRecord, current string) *model.BuildRecord {
	var next *model.BuildRecord
	for i := range fulls {
		b := &fulls[i]
		if !b.Mandatory || !vercomp.IsNewerThan(b.Payload.Incremental, current) {
			continue
		}
		if next == nil || vercomp.IsNewerThan(next.Payload.Incremental, b.Payload.Incremental) {
			next = b
		}
	}
	return next
}

// bestDeltaToward picks, among deltas based on the device's current
// version, the one with the greatest target not beyond ceiling.
func bestDeltaToward(deltas []model.BuildRecord, current, ceiling string) *model.BuildRecord {
	var best *model.BuildRecord
	for i := range deltas {
		b := &deltas[i]
		if vercomp.Compare(b.BaseIncremental, current) != vercomp.Equal {
			continue
		}
		target := b.Payload.Incremental
		if !vercomp.IsNewerThan(target, current) || vercomp.IsNewerThan(target, ceiling) {
			continue
		}
		if best == nil || vercomp.IsNewerThan(target, best.Payload.Incremental) {
			best = b
		}
	}
	return best
}

// firstDeltaFrom returns the first delta, in the catalog's timestamp
// ordering, that moves the device forward from its current version.
func firstDeltaFrom(deltas []model.BuildRecord, current string) *model.BuildRecord {
	for i := range deltas {
		b := &deltas[i]
		if vercomp.Compare(b.BaseIncremental, current) != vercomp.Equal {
			continue
		}
		if vercomp.IsNewerThan(b.Payload.Incremental, current) {
			return b
		}
	}
	return nil
}

// fullIndexDistance measures the index gap between two incrementals
// inside the full-build sequence sorted ascending. Either endpoint
// missing from the sequence makes the hop unbounded.
func fullIndexDistance(fulls []model.BuildRecord, from, to string) int {
	const unbounded = int(^uint(0) >> 1)

	ordered := lo.Map(fulls, func(b model.BuildRecord, _ int) string { return b.Payload.Incremental })
	vercomp.Sort(ordered)

	fromIdx, toIdx := -1, -1
	for i, inc := range ordered {
		if vercomp.Compare(inc, from) == vercomp.Equal {
			fromIdx = i
		}
		if vercomp.Compare(inc, to) == vercomp.Equal {
			toIdx = i
		}
	}
	if fromIdx < 0 || toIdx < 0 {
		return unbounded
	}
	if toIdx < fromIdx {
		return fromIdx - toIdx
	}
	return toIdx - fromIdx
}

func (l *UpdateLogic) resolveURL(payload model.Payload) string {
	if payload.URL != "" {
		return urlkit.Normalize(l.conf.Extra.BaseURL, payload.URL)
	}
	return urlkit.DownloadURL(l.conf.Extra.BaseURL, payload.Filename)
}
