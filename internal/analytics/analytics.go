// Package analytics rebuilds derived download and adoption statistics
// from the append-only activity logs.
//
// Both caches are disposable: they are persisted alongside the catalog,
// tagged with a signature of the contributing log files, and rebuilt only
// when that signature changes. Concurrent staleness detections collapse
// into a single in-flight rebuild.
package analytics

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/minio/sha256-simd"
)

// stable key order keeps rebuilt cache documents byte-identical when the
// underlying logs have not changed
var json = sonic.Config{SortMapKeys: true}.Froze()

const maxLineSize = 1024 * 1024

// signature identifies a log file set by name, size and modification
// time. Missing files are skipped: an absent log is an empty, valid input.
func signature(paths []string) string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	h := sha256.New()
	for _, path := range sorted {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		fmt.Fprintf(h, "%s|%d|%d\n", info.Name(), info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// scanLines feeds every non-empty line of path to fn. A missing file is
// not an error.
func scanLines(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}

// dayKey converts an RFC3339 timestamp to its calendar day; entries with
// an unparsable timestamp are attributed to the current day.
func dayKey(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.DateOnly)
}

func parseMillis(timestamp string) int64 {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}

func loadCache[T any](path string) *T {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	cache := new(T)
	if err := json.Unmarshal(raw, cache); err != nil {
		return nil
	}
	return cache
}

func persistCache(path string, cache any) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
