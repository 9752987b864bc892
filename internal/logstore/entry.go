package logstore

import "time"

type base struct {
	Timestamp string `json:"timestamp"`
}

func (b *base) stamp(t time.Time) {
	b.Timestamp = t.Format(time.RFC3339)
}

// APIAccessEntry records one update-check decision.
type APIAccessEntry struct {
	base
	Codename           string   `json:"codename"`
	Channel            string   `json:"channel"`
	CurrentIncremental string   `json:"currentIncremental"`
	Serial             string   `json:"serial"`
	Decision           string   `json:"decision"`
	TargetIncrementals []string `json:"targetIncrementals"`
	Mandatory          bool     `json:"mandatory"`
	IP                 string   `json:"ip"`
	XForwardedFor      string   `json:"xForwardedFor"`
	UserAgent          string   `json:"userAgent"`
}

// DownloadEntry records one served package download. Partial marks a
// range-resumed transfer; analytics counts only initial transfers.
type DownloadEntry struct {
	base
	File          string `json:"file"`
	RequestedPath string `json:"requestedPath"`
	Partial       bool   `json:"partial"`
	IP            string `json:"ip"`
	XForwardedFor string `json:"xForwardedFor"`
	UserAgent     string `json:"userAgent"`
}

// AdminAuditEntry records one administrative action.
type AdminAuditEntry struct {
	base
	Action        string   `json:"action"`
	Username      string   `json:"username"`
	Codename      string   `json:"codename,omitempty"`
	Channel       string   `json:"channel,omitempty"`
	BuildID       string   `json:"buildId,omitempty"`
	Incremental   string   `json:"incremental,omitempty"`
	DeltaBase     string   `json:"deltaBase,omitempty"`
	Fields        []string `json:"fields,omitempty"`
	Days          int      `json:"days,omitempty"`
	IP            string   `json:"ip"`
	XForwardedFor string   `json:"xForwardedFor"`
	UserAgent     string   `json:"userAgent"`
}
