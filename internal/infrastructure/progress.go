package infrastructure

import (
	"regexp"
	"strconv"
	"strings"
)

// ProgressEventType classifies a single line of extraction tool output.
type ProgressEventType string

const (
	EventProgress    ProgressEventType = "progress"
	EventDestination ProgressEventType = "destination"
	EventMerging     ProgressEventType = "merging"
	EventComplete    ProgressEventType = "complete"
)

// ProgressEvent is one typed event parsed from the tool's stdout.
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	Percent   float64           `json:"percent,omitempty"`
	Size      float64           `json:"size,omitempty"`
	SizeUnit  string            `json:"size_unit,omitempty"`
	Speed     float64           `json:"speed,omitempty"`
	SpeedUnit string            `json:"speed_unit,omitempty"`
	ETA       string            `json:"eta,omitempty"`
	Path      string            `json:"path,omitempty"`
}

// yt-dlp line shapes, e.g.
//   [download]  45.2% of ~50.25MiB at 1.20MiB/s ETA 00:25
//   [download] Destination: /tmp/video.mp4
//   [Merger] Merging formats into "/tmp/video.mp4"
//   [download] 100% of 10MiB in 00:05
var (
	progressRegex    = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%\s+of\s+~?\s*(\d+\.?\d*)([KMGT])iB\s+at\s+(\d+\.?\d*)([KMGT])iB/s\s+ETA\s+([\d:]+)`)
	destinationRegex = regexp.MustCompile(`\[download\]\s+Destination:\s+(.+)`)
	mergingRegex     = regexp.MustCompile(`\[Merger\]\s+Merging formats into\s+"(.+)"`)
	completeRegex    = regexp.MustCompile(`\[download\]\s+100%\s+of`)
)

// ParseProgressLine classifies one line of tool stdout against the known
// patterns, in order. Most tool output is irrelevant chatter; unmatched lines
// return nil, which is not an error. The caller must buffer partial chunks by
// newline before calling.
func ParseProgressLine(line string) *ProgressEvent {
	if m := progressRegex.FindStringSubmatch(line); m != nil {
		percent, _ := strconv.ParseFloat(m[1], 64)
		size, _ := strconv.ParseFloat(m[2], 64)
		speed, _ := strconv.ParseFloat(m[4], 64)
		return &ProgressEvent{
			Type:      EventProgress,
			Percent:   percent,
			Size:      size,
			SizeUnit:  m[3],
			Speed:     speed,
			SpeedUnit: m[5],
			ETA:       m[6],
		}
	}

	if m := destinationRegex.FindStringSubmatch(line); m != nil {
		return &ProgressEvent{Type: EventDestination, Path: strings.TrimSpace(m[1])}
	}

	if m := mergingRegex.FindStringSubmatch(line); m != nil {
		return &ProgressEvent{Type: EventMerging, Path: m[1]}
	}

	if completeRegex.MatchString(line) || strings.Contains(line, "has already been downloaded") {
		return &ProgressEvent{Type: EventComplete}
	}

	return nil
}
