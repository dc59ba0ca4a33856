package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DownloadStatus is the lifecycle state of a tracked download.
type DownloadStatus string

const (
	StatusStarting    DownloadStatus = "starting"
	StatusDownloading DownloadStatus = "downloading"
	StatusMerging     DownloadStatus = "merging"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
)

// Download is one tracked file-based download. It is both the live state
// record polled by clients and the row persisted for history. The download
// manager is its only writer after creation; terminal states are final.
type Download struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	URL          string         `json:"url" gorm:"not null"`
	Platform     string         `json:"platform"`
	FormatID     string         `json:"format_id,omitempty"`
	AudioOnly    bool           `json:"audio_only"`
	Status       DownloadStatus `json:"status" gorm:"not null;index"`
	Progress     float64        `json:"progress"`
	Speed        string         `json:"speed,omitempty"`
	ETA          string         `json:"eta,omitempty"`
	OutputPath   string         `json:"output_path,omitempty"`
	ErrorMessage string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a download in the starting state with a fresh id.
func NewDownload(url string, platform PlatformDescriptor, formatID string, audioOnly bool) *Download {
	return &Download{
		ID:        uuid.New().String(),
		URL:       url,
		Platform:  platform.Name,
		FormatID:  formatID,
		AudioOnly: audioOnly,
		Status:    StatusStarting,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// IsTerminal reports whether the download reached a final state. Terminal
// downloads must never transition again.
func (d *Download) IsTerminal() bool {
	switch d.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// MarkDownloading records a progress update. No-op once terminal.
func (d *Download) MarkDownloading(percent float64, speed, eta string) {
	if d.IsTerminal() {
		return
	}
	d.Status = StatusDownloading
	d.Progress = percent
	d.Speed = speed
	d.ETA = eta
	d.UpdatedAt = time.Now()
}

// MarkMerging records that the tool is merging separate streams into the
// final container. No-op once terminal.
func (d *Download) MarkMerging(outputPath string) {
	if d.IsTerminal() {
		return
	}
	d.Status = StatusMerging
	if outputPath != "" {
		d.OutputPath = outputPath
	}
	d.UpdatedAt = time.Now()
}

// SetOutputPath records the destination file announced by the tool.
func (d *Download) SetOutputPath(path string) {
	if d.IsTerminal() {
		return
	}
	d.OutputPath = path
	d.UpdatedAt = time.Now()
}

// MarkCompleted finalizes a successful download. No-op once terminal.
func (d *Download) MarkCompleted() {
	if d.IsTerminal() {
		return
	}
	d.Status = StatusCompleted
	d.Progress = 100
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed finalizes a failed download. No-op once terminal.
func (d *Download) MarkFailed(err error) {
	if d.IsTerminal() {
		return
	}
	d.Status = StatusFailed
	d.ErrorMessage = err.Error()
	d.UpdatedAt = time.Now()
}

// MarkFailedExit finalizes with a synthesized exit-code error.
func (d *Download) MarkFailedExit(code int) {
	d.MarkFailed(fmt.Errorf("exit code %d", code))
}

// MarkCancelled finalizes an externally cancelled download. No-op once
// terminal, which makes cancellation idempotent.
func (d *Download) MarkCancelled() {
	if d.IsTerminal() {
		return
	}
	d.Status = StatusCancelled
	d.UpdatedAt = time.Now()
}

// Snapshot returns a copy safe to hand to readers while the manager keeps
// mutating the original.
func (d *Download) Snapshot() Download {
	return *d
}
