// Package logstore writes append-only structured activity logs,
// partitioned by calendar day. The files it produces are the input of the
// analytics aggregators.
package logstore

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	APIAccessPrefix  = "api-access"
	DownloadPrefix   = "download-access"
	AdminAuditPrefix = "admin-audit"

	queueDepth = 256
)

// Entry is implemented by every loggable record; the appender stamps the
// entry just before it is queued.
type Entry interface {
	stamp(t time.Time)
}

// Appender appends JSONL entries to a day-partitioned file set. Appends
// are asynchronous: a full queue or a write failure is reported to
// operators via the logger and never propagates to the caller, so the
// response already committed to the client is never affected.
type Appender struct {
	dir    string
	prefix string
	logger *zap.Logger

	ch   chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func NewAppender(dir, prefix string, logger *zap.Logger) *Appender {
	a := &Appender{
		dir:    dir,
		prefix: prefix,
		logger: logger,
		ch:     make(chan []byte, queueDepth),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Append queues one entry. It never blocks: when the queue is full the
// entry is dropped with an operator-visible warning.
func (a *Appender) Append(entry Entry) {
	entry.stamp(time.Now().UTC())
	line, err := sonic.Marshal(entry)
	if err != nil {
		a.logger.Warn("Failed to encode log entry",
			zap.String("prefix", a.prefix),
			zap.Error(err),
		)
		return
	}
	select {
	case a.ch <- append(line, '\n'):
	default:
		a.logger.Warn("Log queue full, entry dropped",
			zap.String("prefix", a.prefix),
		)
	}
}

// Close drains the queue and stops the writer goroutine.
func (a *Appender) Close() {
	a.closeOnce.Do(func() {
		close(a.ch)
		<-a.done
	})
}

// Files lists the appender's existing day-partitioned files, sorted by
// name (and therefore by day).
func (a *Appender) Files() []string {
	pattern := filepath.Join(a.dir, a.prefix+"-*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		a.logger.Warn("Failed to glob log files",
			zap.String("pattern", pattern),
			zap.Error(err),
		)
		return nil
	}
	sort.Strings(matches)
	return matches
}

func (a *Appender) run() {
	defer close(a.done)
	for line := range a.ch {
		if err := a.write(line); err != nil {
			a.logger.Warn("Failed to append log entry",
				zap.String("prefix", a.prefix),
				zap.Error(err),
			)
		}
	}
}

func (a *Appender) write(line []byte) error {
	day := time.Now().UTC().Format(time.DateOnly)
	path := filepath.Join(a.dir, a.prefix+"-"+day+".jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	_, err = f.Write(line)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Set bundles the three appenders of the service.
type Set struct {
	API      *Appender
	Download *Appender
	Admin    *Appender
}

func NewSet(dir string, logger *zap.Logger) *Set {
	return &Set{
		API:      NewAppender(dir, APIAccessPrefix, logger),
		Download: NewAppender(dir, DownloadPrefix, logger),
		Admin:    NewAppender(dir, AdminAuditPrefix, logger),
	}
}

func (s *Set) Close() {
	s.API.Close()
	s.Download.Close()
	s.Admin.Close()
}
