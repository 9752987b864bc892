package analytics

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/metrics"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const adoptionCacheFile = "report-cache.json"

type IncrementalCount struct {
	Incremental string `json:"incremental"`
	Count       int    `json:"count"`
}

type ChannelCount struct {
	Channel string `json:"channel"`
	Count   int    `json:"count"`
}

type CodenameSummary struct {
	TotalDevices int                `json:"totalDevices"`
	Versions     []IncrementalCount `json:"versions"`
	Channels     []ChannelCount     `json:"channels"`
}

type CodenameReport struct {
	Summary CodenameSummary               `json:"summary"`
	Daily   map[string][]IncrementalCount `json:"daily"`
}

type AdoptionCache struct {
	GeneratedAt string                    `json:"generatedAt"`
	Signature   string                    `json:"signature"`
	PerCodename map[string]CodenameReport `json:"perCodename"`
}

// GraphDay is one slot of the fixed-length daily adoption series.
type GraphDay struct {
	Date     string             `json:"date"`
	Versions []IncrementalCount `json:"versions"`
}

// AdoptionReport reconstructs, per codename, which version each distinct
// device last reported, from the update-decision audit logs.
type AdoptionReport struct {
	logger    *zap.Logger
	cachePath string
	logs      *logstore.Appender

	mu    sync.Mutex
	cache *AdoptionCache
	sf    singleflight.Group
}

func NewAdoptionReport(conf *config.Config, logs *logstore.Set, logger *zap.Logger) *AdoptionReport {
	return &AdoptionReport{
		logger:    logger,
		cachePath: filepath.Join(conf.Paths.Data, adoptionCacheFile),
		logs:      logs.API,
	}
}

func (s *AdoptionReport) Ensure(ctx context.Context) (*AdoptionCache, error) {
	files := s.logs.Files()
	sig := signature(files)

	s.mu.Lock()
	if s.cache == nil {
		s.cache = loadCache[AdoptionCache](s.cachePath)
	}
	if s.cache != nil && s.cache.Signature == sig {
		cache := s.cache
		s.mu.Unlock()
		return cache, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do(sig, func() (any, error) {
		cache, err := buildAdoptionCache(files)
		if err != nil {
			return nil, err
		}
		cache.Signature = sig
		cache.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
		if err := persistCache(s.cachePath, cache); err != nil {
			s.logger.Warn("Failed to persist adoption cache",
				zap.Error(err),
			)
		}
		s.mu.Lock()
		s.cache = cache
		s.mu.Unlock()
		metrics.AnalyticsRebuilds.WithLabelValues("adoption").Inc()
		return cache, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AdoptionCache), nil
}

// Codename returns the report of one codename; an unknown codename yields
// an empty, zero-count report.
func (s *AdoptionReport) Codename(ctx context.Context, codename string) (CodenameReport, error) {
	cache, err := s.Ensure(ctx)
	if err != nil {
		return CodenameReport{}, err
	}
	report, ok := cache.PerCodename[codename]
	if !ok {
		return CodenameReport{
			Summary: CodenameSummary{
				Versions: []IncrementalCount{},
				Channels: []ChannelCount{},
			},
			Daily: map[string][]IncrementalCount{},
		}, nil
	}
	return report, nil
}

// BuildGraph produces exactly days entries ending today, filling days
// without data with empty version lists.
func BuildGraph(daily map[string][]IncrementalCount, days int, now time.Time) []GraphDay {
	graph := make([]GraphDay, 0, days)
	for offset := days - 1; offset >= 0; offset-- {
		date := now.UTC().AddDate(0, 0, -offset).Format(time.DateOnly)
		versions, ok := daily[date]
		if !ok {
			versions = []IncrementalCount{}
		}
		graph = append(graph, GraphDay{Date: date, Versions: versions})
	}
	return graph
}

type apiLogEntry struct {
	Timestamp          string `json:"timestamp"`
	Codename           string `json:"codename"`
	Channel            string `json:"channel"`
	CurrentIncremental string `json:"currentIncremental"`
	Serial             string `json:"serial"`
}

type deviceState struct {
	version string
	channel string
	millis  int64
}

func buildAdoptionCache(files []string) (*AdoptionCache, error) {
	var (
		// codename -> serial -> latest report
		summary = make(map[string]map[string]deviceState)
		// codename -> day -> serial -> latest report that day
		daily = make(map[string]map[string]map[string]deviceState)
	)

	for _, file := range files {
		err := scanLines(file, func(line []byte) {
			var entry apiLogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return
			}
			if entry.Codename == "" || entry.Serial == "" || entry.CurrentIncremental == "" {
				return
			}
			channel := entry.Channel
			if channel == "" {
				channel = "unknown"
			}
			state := deviceState{
				version: entry.CurrentIncremental,
				channel: channel,
				millis:  parseMillis(entry.Timestamp),
			}

			if summary[entry.Codename] == nil {
				summary[entry.Codename] = make(map[string]deviceState)
			}
			if existing, ok := summary[entry.Codename][entry.Serial]; !ok || state.millis > existing.millis {
				summary[entry.Codename][entry.Serial] = state
			}

			day := dayKey(entry.Timestamp)
			if daily[entry.Codename] == nil {
				daily[entry.Codename] = make(map[string]map[string]deviceState)
			}
			if daily[entry.Codename][day] == nil {
				daily[entry.Codename][day] = make(map[string]deviceState)
			}
			if existing, ok := daily[entry.Codename][day][entry.Serial]; !ok || state.millis > existing.millis {
				daily[entry.Codename][day][entry.Serial] = state
			}
		})
		if err != nil {
			return nil, err
		}
	}

	cache := &AdoptionCache{
		PerCodename: make(map[string]CodenameReport, len(summary)),
	}
	for codename, devices := range summary {
		versionCounts := lo.CountValuesBy(lo.Values(devices), func(s deviceState) string { return s.version })
		channelCounts := lo.CountValuesBy(lo.Values(devices), func(s deviceState) string { return s.channel })

		report := CodenameReport{
			Summary: CodenameSummary{
				TotalDevices: len(devices),
				Versions:     toIncrementalCounts(versionCounts),
				Channels:     toChannelCounts(channelCounts),
			},
			Daily: make(map[string][]IncrementalCount),
		}
		for day, serials := range daily[codename] {
			counts := lo.CountValuesBy(lo.Values(serials), func(s deviceState) string { return s.version })
			report.Daily[day] = toIncrementalCounts(counts)
		}
		cache.PerCodename[codename] = report
	}
	return cache, nil
}

func toIncrementalCounts(counts map[string]int) []IncrementalCount {
	out := make([]IncrementalCount, 0, len(counts))
	for incremental, count := range counts {
		out = append(out, IncrementalCount{Incremental: incremental, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Incremental < out[j].Incremental })
	return out
}

func toChannelCounts(counts map[string]int) []ChannelCount {
	out := make([]ChannelCount, 0, len(counts))
	for channel, count := range counts {
		out = append(out, ChannelCount{Channel: channel, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}
