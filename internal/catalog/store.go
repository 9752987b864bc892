// Package catalog is the durable registry of build records, keyed by
// device codename and release channel.
//
// The whole catalog is one versioned JSON snapshot document. Every
// operation, reads included, runs under the store mutex, and a mutation
// rewrites the snapshot in full (temp file + fsync + rename) before its
// call returns. Operations against one store therefore complete in
// submission order and a successful mutation is visible to every caller
// that observes its response.
package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dariaos/ota-backend/internal/model"
	"github.com/dariaos/ota-backend/internal/vercomp"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("catalog: build not found")
	ErrDuplicate = errors.New("catalog: duplicate build")
)

// stable key order keeps rewritten snapshots diffable
var json = sonic.Config{SortMapKeys: true}.Froze()

type Document struct {
	Revision  int64                     `json:"revision"`
	Codenames map[string]*CodenameEntry `json:"codenames"`
}

type CodenameEntry struct {
	Channels map[string]*ChannelEntry `json:"channels"`
}

type ChannelEntry struct {
	Builds []model.BuildRecord `json:"builds"`
}

type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
	doc    *Document
}

// NewStore loads the snapshot at path, or starts an empty catalog if none
// exists yet.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
	}
	doc, err := loadDocument(path)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

func loadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return emptyDocument(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog snapshot %s", path)
	}
	doc := emptyDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errors.Wrapf(err, "decode catalog snapshot %s", path)
	}
	if doc.Codenames == nil {
		doc.Codenames = make(map[string]*CodenameEntry)
	}
	return doc, nil
}

func emptyDocument() *Document {
	return &Document{
		Codenames: make(map[string]*CodenameEntry),
	}
}

// Revision returns the snapshot revision, bumped on every persisted
// mutation.
func (s *Store) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Revision
}

func (s *Store) ListCodenames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	codenames := make([]string, 0, len(s.doc.Codenames))
	for codename := range s.doc.Codenames {
		codenames = append(codenames, codename)
	}
	sort.Strings(codenames)
	return codenames
}

func (s *Store) ListChannels(codename string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.doc.Codenames[codename]
	if !ok {
		return []string{}
	}
	channels := make([]string, 0, len(entry.Channels))
	for channel := range entry.Channels {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return channels
}

// ListBuilds returns the builds of a (codename, channel) sorted by payload
// timestamp descending. An unknown key yields an empty list, not an error.
func (s *Store) ListBuilds(codename, channel string) []model.BuildRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.channelEntry(codename, channel)
	if entry == nil {
		return []model.BuildRecord{}
	}
	builds := make([]model.BuildRecord, 0, len(entry.Builds))
	for _, b := range entry.Builds {
		builds = append(builds, cloneBuild(b))
	}
	sort.SliceStable(builds, func(i, j int) bool {
		return builds[i].Payload.Timestamp > builds[j].Payload.Timestamp
	})
	return builds
}

func (s *Store) GetBuild(codename, channel, buildID string) (model.BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.channelEntry(codename, channel)
	if entry == nil {
		return model.BuildRecord{}, ErrNotFound
	}
	for _, b := range entry.Builds {
		if b.ID == buildID {
			return cloneBuild(b), nil
		}
	}
	return model.BuildRecord{}, ErrNotFound
}

// FindByIncremental locates a build of the given type whose incremental
// compares equal to the one supplied.
func (s *Store) FindByIncremental(codename, channel, incremental string, buildType model.BuildType) (model.BuildRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.channelEntry(codename, channel)
	if entry == nil {
		return model.BuildRecord{}, false
	}
	for _, b := range entry.Builds {
		if b.Type == buildType && vercomp.Compare(b.Payload.Incremental, incremental) == vercomp.Equal {
			return cloneBuild(b), true
		}
	}
	return model.BuildRecord{}, false
}

// AddBuild assigns an identifier and audit timestamps, appends the record
// and persists the snapshot. It fails with ErrDuplicate when a full build
// with the same incremental, or a delta with the same base and target,
// already exists in the (codename, channel).
func (s *Store) AddBuild(build model.BuildRecord) (model.BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.ensureChannel(build.Codename, build.Channel)
	for _, b := range entry.Builds {
		if b.Type != build.Type {
			continue
		}
		if vercomp.Compare(b.Payload.Incremental, build.Payload.Incremental) != vercomp.Equal {
			continue
		}
		if build.Type == model.BuildTypeFull || b.BaseIncremental == build.BaseIncremental {
			return model.BuildRecord{}, ErrDuplicate
		}
	}

	now := time.Now().UnixMilli()
	record := cloneBuild(build)
	record.ID = ksuid.New().String()
	record.Payload.ID = record.ID
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.CreatedBy == "" {
		record.CreatedBy = "system"
	}
	if record.Type == "" {
		record.Type = model.BuildTypeFull
	}

	entry.Builds = append(entry.Builds, record)
	if err := s.persistLocked(); err != nil {
		return model.BuildRecord{}, err
	}
	return cloneBuild(record), nil
}

// UpdateBuild is a partial merge: only supplied fields land in the record.
type UpdateBuild struct {
	Publish           *bool
	Mandatory         *bool
	URL               *string
	Changes           *string
	File              *model.FileRef
	ChangelogSourceID *string
}

func (s *Store) UpdateBuild(codename, channel, buildID string, updates UpdateBuild) (model.BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.channelEntry(codename, channel)
	if entry == nil {
		return model.BuildRecord{}, ErrNotFound
	}
	idx := -1
	for i, b := range entry.Builds {
		if b.ID == buildID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.BuildRecord{}, ErrNotFound
	}

	record := cloneBuild(entry.Builds[idx])
	if updates.Publish != nil {
		record.Publish = *updates.Publish
	}
	if updates.Mandatory != nil {
		record.Mandatory = *updates.Mandatory
	}
	if updates.URL != nil {
		record.Payload.URL = *updates.URL
	}
	if updates.Changes != nil {
		record.Payload.Changes = *updates.Changes
	}
	if updates.File != nil {
		file := *updates.File
		record.File = &file
	}
	if updates.ChangelogSourceID != nil {
		record.ChangelogSourceID = *updates.ChangelogSourceID
	}
	record.UpdatedAt = time.Now().UnixMilli()

	entry.Builds[idx] = record
	if err := s.persistLocked(); err != nil {
		return model.BuildRecord{}, err
	}
	return cloneBuild(record), nil
}

// DeleteBuild removes a record if present. It is idempotent and reports
// whether anything was removed.
func (s *Store) DeleteBuild(codename, channel, buildID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.channelEntry(codename, channel)
	if entry == nil {
		return false, nil
	}
	kept := entry.Builds[:0]
	removed := false
	for _, b := range entry.Builds {
		if b.ID == buildID {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	if !removed {
		return false, nil
	}
	entry.Builds = kept
	if err := s.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) channelEntry(codename, channel string) *ChannelEntry {
	codenameEntry, ok := s.doc.Codenames[codename]
	if !ok {
		return nil
	}
	return codenameEntry.Channels[channel]
}

func (s *Store) ensureChannel(codename, channel string) *ChannelEntry {
	codenameEntry, ok := s.doc.Codenames[codename]
	if !ok {
		codenameEntry = &CodenameEntry{Channels: make(map[string]*ChannelEntry)}
		s.doc.Codenames[codename] = codenameEntry
	}
	channelEntry, ok := codenameEntry.Channels[channel]
	if !ok {
		channelEntry = &ChannelEntry{}
		codenameEntry.Channels[channel] = channelEntry
	}
	return channelEntry
}

// persistLocked rewrites the snapshot in full. On a write failure the
// in-memory document is re-read from disk so memory never runs ahead of
// the durable state.
func (s *Store) persistLocked() error {
	s.doc.Revision++

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return s.resyncLocked(errors.Wrap(err, "encode catalog snapshot"))
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return s.resyncLocked(errors.Wrap(err, "open catalog temp file"))
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return s.resyncLocked(errors.Wrap(err, "write catalog snapshot"))
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return s.resyncLocked(errors.Wrap(err, "flush catalog snapshot"))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return s.resyncLocked(errors.Wrap(err, "close catalog snapshot"))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return s.resyncLocked(errors.Wrap(err, "replace catalog snapshot"))
	}
	return nil
}

func (s *Store) resyncLocked(cause error) error {
	doc, err := loadDocument(s.path)
	if err != nil {
		s.logger.Error("Failed to resync catalog from disk after write failure",
			zap.String("path", filepath.Base(s.path)),
			zap.Error(err),
		)
		return cause
	}
	s.doc = doc
	return cause
}

func cloneBuild(b model.BuildRecord) model.BuildRecord {
	clone := b
	if b.File != nil {
		file := *b.File
		clone.File = &file
	}
	return clone
}
