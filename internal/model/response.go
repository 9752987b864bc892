package model

// UpdatePayload is the outward payload view of a chosen build, tagged with
// the update type and, on the mandatory path, the mandatory flag.
type UpdatePayload struct {
	Payload
	UpdateType string `json:"updatetype"`
	Mandatory  bool   `json:"mandatory,omitempty"`
}

// UpdateCheckResponse is the v1 device envelope. ID is always null for
// v1 compatibility; Response holds at most one package descriptor.
type UpdateCheckResponse struct {
	ID       *string         `json:"id"`
	Response []UpdatePayload `json:"response"`
}

// Decision labels for audit entries and metrics.
const (
	DecisionNone  = "none"
	DecisionFull  = "full"
	DecisionDelta = "delta"
)

// BuildDetail is the maintainer-facing view of a catalog record, with the
// type mirrored into the legacy updatetype tag.
type BuildDetail struct {
	BuildRecord
	UpdateType string `json:"updatetype"`
}

// CodenameChannels pairs a codename with its known release channels.
type CodenameChannels struct {
	Codename string   `json:"codename"`
	Channels []string `json:"channels"`
}

// IngestResult reports the records created by one ingestion attempt.
type IngestResult struct {
	Full  BuildDetail  `json:"full"`
	Delta *BuildDetail `json:"delta"`
}
