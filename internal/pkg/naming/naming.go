// Package naming parses firmware package filenames.
//
// Filenames follow a fixed dash-delimited grammar:
//
//	<os>-<major>-<date>-<channel>-<codename>-<incremental>-<buildtype>-<signed>.zip
//
// The codename may itself contain dashes, so it is inferred positionally: it
// spans from the fifth segment up to the third segment from the end. Delta
// packages carry a base and target incremental in the same slot, joined by
// '+' or '>'.
package naming

import (
	"errors"
	"fmt"
	"strings"
)

const minSegments = 8

var (
	ErrNotZip    = errors.New("firmware file must have .zip extension")
	ErrBadFormat = errors.New("unexpected firmware filename format")
)

type FullInfo struct {
	OSName         string
	OSMajorVersion string
	BuildDate      string
	Channel        string
	Codename       string
	Incremental    string
	BuildType      string
	SignedTag      string
}

type DeltaInfo struct {
	OSName          string
	OSMajorVersion  string
	BuildDate       string
	Channel         string
	Codename        string
	BaseIncremental string
	Incremental     string
	BuildType       string
	SignedTag       string
}

// ParseFull extracts the structured fields of a full package filename.
func ParseFull(filename string) (*FullInfo, error) {
	segments, err := parseSegments(filename)
	if err != nil {
		return nil, err
	}
	n := len(segments)
	return &FullInfo{
		OSName:         segments[0],
		OSMajorVersion: segments[1],
		BuildDate:      segments[2],
		Channel:        strings.ToLower(segments[3]),
		Codename:       strings.Join(segments[4:n-3], "-"),
		Incremental:    segments[n-3],
		BuildType:      segments[n-2],
		SignedTag:      segments[n-1],
	}, nil
}

// ParseDelta extracts the structured fields of a delta package filename.
func ParseDelta(filename string) (*DeltaInfo, error) {
	segments, err := parseSegments(filename)
	if err != nil {
		return nil, err
	}
	n := len(segments)
	transition := segments[n-3]
	delimiter := ">"
	if strings.Contains(transition, "+") {
		delimiter = "+"
	}
	from, to, found := strings.Cut(transition, delimiter)
	if !found || from == "" || to == "" {
		return nil, fmt.Errorf("delta filename must include previous%starget incremental values", delimiter)
	}
	return &DeltaInfo{
		OSName:          segments[0],
		OSMajorVersion:  segments[1],
		BuildDate:       segments[2],
		Channel:         strings.ToLower(segments[3]),
		Codename:        strings.Join(segments[4:n-3], "-"),
		BaseIncremental: from,
		Incremental:     to,
		BuildType:       segments[n-2],
		SignedTag:       segments[n-1],
	}, nil
}

func parseSegments(filename string) ([]string, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return nil, ErrNotZip
	}
	name := filename[:len(filename)-4]
	segments := strings.Split(name, "-")
	if len(segments) < minSegments {
		return nil, ErrBadFormat
	}
	return segments, nil
}
