package model

type BuildType string

const (
	BuildTypeFull  BuildType = "full"
	BuildTypeDelta BuildType = "delta"
)

// Payload is the outward-facing bundle of a build. It is immutable once
// set apart from the download URL and the embedded changelog, which
// maintainers may edit after the fact.
type Payload struct {
	ID          string `json:"id,omitempty"`
	Incremental string `json:"incremental"`
	APILevel    string `json:"api_level"`
	URL         string `json:"url"`
	Datetime    int64  `json:"datetime"`
	MD5Sum      string `json:"md5sum"`
	Changes     string `json:"changes"`
	Channel     string `json:"channel"`
	Filename    string `json:"filename"`
	RomType     string `json:"romtype"`
	Timestamp   int64  `json:"timestamp"`
	Version     string `json:"version"`
	Size        int64  `json:"size"`
}

// FileRef locates a package file below the uploads root.
type FileRef struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256,omitempty"`
}

// BuildRecord is the unit of distributable firmware in the catalog.
// BaseIncremental is set only on delta builds; ChangelogSourceID points a
// delta at the full build whose changelog it mirrors.
type BuildRecord struct {
	ID                string    `json:"id"`
	Codename          string    `json:"codename"`
	Channel           string    `json:"channel"`
	Type              BuildType `json:"type"`
	BaseIncremental   string    `json:"baseIncremental,omitempty"`
	Payload           Payload   `json:"payload"`
	Publish           bool      `json:"publish"`
	Mandatory         bool      `json:"mandatory"`
	File              *FileRef  `json:"file,omitempty"`
	ChangelogSourceID string    `json:"changelogSourceId,omitempty"`
	CreatedAt         int64     `json:"createdAt"`
	UpdatedAt         int64     `json:"updatedAt"`
	CreatedBy         string    `json:"createdBy"`
}

func (b BuildRecord) IsFull() bool {
	return b.Type == BuildTypeFull
}

func (b BuildRecord) IsDelta() bool {
	return b.Type == BuildTypeDelta
}

// RequestMeta is the caller network metadata carried into audit entries.
type RequestMeta struct {
	IP            string `json:"ip"`
	XForwardedFor string `json:"xForwardedFor"`
	UserAgent     string `json:"userAgent"`
}
