package analytics

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dariaos/ota-backend/internal/config"
	"github.com/dariaos/ota-backend/internal/logstore"
	"github.com/dariaos/ota-backend/internal/metrics"
	"github.com/dariaos/ota-backend/internal/pkg/naming"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const downloadCacheFile = "download-cache.json"

type VersionCount struct {
	Version string `json:"version"`
	Count   int    `json:"count"`
}

type CodenameDownloads struct {
	Versions []VersionCount `json:"versions"`
}

type DailyDownload struct {
	Codename string `json:"codename"`
	Version  string `json:"version"`
	Count    int    `json:"count"`
}

// DownloadDay is one calendar day of the daily breakdown.
type DownloadDay struct {
	Date    string          `json:"date"`
	Entries []DailyDownload `json:"entries"`
}

type DownloadCache struct {
	GeneratedAt string                       `json:"generatedAt"`
	Signature   string                       `json:"signature"`
	Totals      map[string]CodenameDownloads `json:"totals"`
	Daily       map[string][]DailyDownload   `json:"daily"`
}

// DownloadStats derives all-time and per-day download counts from the
// download-access logs.
type DownloadStats struct {
	logger    *zap.Logger
	cachePath string
	logs      *logstore.Appender

	mu    sync.Mutex
	cache *DownloadCache
	sf    singleflight.Group
}

func NewDownloadStats(conf *config.Config, logs *logstore.Set, logger *zap.Logger) *DownloadStats {
	return &DownloadStats{
		logger:    logger,
		cachePath: filepath.Join(conf.Paths.Data, downloadCacheFile),
		logs:      logs.Download,
	}
}

// Ensure returns an up-to-date cache, rebuilding it only when the log
// file signature changed since the last build.
func (s *DownloadStats) Ensure(ctx context.Context) (*DownloadCache, error) {
	files := s.logs.Files()
	sig := signature(files)

	s.mu.Lock()
	if s.cache == nil {
		s.cache = loadCache[DownloadCache](s.cachePath)
	}
	if s.cache != nil && s.cache.Signature == sig {
		cache := s.cache
		s.mu.Unlock()
		return cache, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do(sig, func() (any, error) {
		cache, err := buildDownloadCache(files)
		if err != nil {
			return nil, err
		}
		cache.Signature = sig
		cache.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
		if err := persistCache(s.cachePath, cache); err != nil {
			s.logger.Warn("Failed to persist download cache",
				zap.Error(err),
			)
		}
		s.mu.Lock()
		s.cache = cache
		s.mu.Unlock()
		metrics.AnalyticsRebuilds.WithLabelValues("download").Inc()
		return cache, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DownloadCache), nil
}

// Stats returns the all-time totals and the trailing days of the daily
// breakdown, oldest day first.
func (s *DownloadStats) Stats(ctx context.Context, days int) (map[string]CodenameDownloads, []DownloadDay, error) {
	cache, err := s.Ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	if days < 1 {
		days = 1
	}
	dates := lo.Keys(cache.Daily)
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[len(dates)-days:]
	}
	daily := make([]DownloadDay, 0, len(dates))
	for _, date := range dates {
		daily = append(daily, DownloadDay{
			Date:    date,
			Entries: cache.Daily[date],
		})
	}
	return cache.Totals, daily, nil
}

type downloadLogEntry struct {
	Timestamp string `json:"timestamp"`
	File      string `json:"file"`
	Partial   bool   `json:"partial"`
}

type downloadMeta struct {
	codename string
	version  string
}

// parseDownloadMeta derives (codename, version-or-transition) from a
// logged package filename; unparsable names contribute nothing.
func parseDownloadMeta(filename string) *downloadMeta {
	full, err := naming.ParseFull(filename)
	if err != nil {
		return nil
	}
	if strings.ContainsAny(full.Incremental, "+>") {
		delta, err := naming.ParseDelta(filename)
		if err != nil {
			return nil
		}
		return &downloadMeta{codename: delta.Codename, version: delta.BaseIncremental + "->" + delta.Incremental}
	}
	return &downloadMeta{codename: full.Codename, version: full.Incremental}
}

func buildDownloadCache(files []string) (*DownloadCache, error) {
	var (
		totals = make(map[string]map[string]int)
		daily  = make(map[string]map[downloadMeta]int)
	)

	for _, file := range files {
		err := scanLines(file, func(line []byte) {
			var entry downloadLogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return
			}
			if entry.Partial || entry.File == "" {
				return
			}
			meta := parseDownloadMeta(entry.File)
			if meta == nil {
				return
			}

			if totals[meta.codename] == nil {
				totals[meta.codename] = make(map[string]int)
			}
			totals[meta.codename][meta.version]++

			day := dayKey(entry.Timestamp)
			if daily[day] == nil {
				daily[day] = make(map[downloadMeta]int)
			}
			daily[day][*meta]++
		})
		if err != nil {
			return nil, err
		}
	}

	cache := &DownloadCache{
		Totals: make(map[string]CodenameDownloads, len(totals)),
		Daily:  make(map[string][]DailyDownload, len(daily)),
	}
	for codename, versions := range totals {
		counts := make([]VersionCount, 0, len(versions))
		for version, count := range versions {
			counts = append(counts, VersionCount{Version: version, Count: count})
		}
		sort.Slice(counts, func(i, j int) bool { return counts[i].Version < counts[j].Version })
		cache.Totals[codename] = CodenameDownloads{Versions: counts}
	}
	for day, combos := range daily {
		entries := make([]DailyDownload, 0, len(combos))
		for combo, count := range combos {
			entries = append(entries, DailyDownload{
				Codename: combo.codename,
				Version:  combo.version,
				Count:    count,
			})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Codename != entries[j].Codename {
				return entries[i].Codename < entries[j].Codename
			}
			return entries[i].Version < entries[j].Version
		})
		cache.Daily[day] = entries
	}
	return cache, nil
}
