package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
	"github.com/yourusername/mediagrab/internal/infrastructure"
)

// DownloadManager spawns and supervises file-based downloads. It owns the
// live state of every tracked download; collaborators observe state by
// polling Get or by subscribing to snapshots.
type DownloadManager struct {
	binary    string
	outputDir string
	logsDir   string
	repo      domain.DownloadRepository
	logger    *zap.Logger

	mu     sync.Mutex
	active map[string]*activeDownload

	janitorStop chan struct{}
	janitorWg   sync.WaitGroup
}

type activeDownload struct {
	download    *domain.Download
	cancel      context.CancelFunc
	subscribers map[int]chan domain.Download
	nextSubID   int
	done        chan struct{}
}

// NewDownloadManager creates a download manager writing files under outputDir
// and raw tool output under logsDir.
func NewDownloadManager(binary, outputDir, logsDir string, repo domain.DownloadRepository, logger *zap.Logger) *DownloadManager {
	return &DownloadManager{
		binary:    binary,
		outputDir: outputDir,
		logsDir:   logsDir,
		repo:      repo,
		logger:    logger,
		active:    make(map[string]*activeDownload),
	}
}

// Start spawns the extraction tool in download mode and returns immediately
// with the tracked download in the starting state.
func (dm *DownloadManager) Start(url, formatID string, audioOnly bool) (*domain.Download, error) {
	platform := domain.DetectPlatform(url)
	download := domain.NewDownload(url, platform, formatID, audioOnly)

	if err := os.MkdirAll(dm.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	args := dm.buildArgs(url, formatID, audioOnly)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, dm.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	processLog, logErr := dm.openProcessLog()
	if logErr != nil {
		dm.logger.Warn("Could not open download process log", zap.Error(logErr))
	} else {
		dm.writeLogHeader(processLog, download.ID, infrastructure.ShellEscapeCommand(dm.binary, args...))
		cmd.Stderr = processLog
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if processLog != nil {
			processLog.Close()
		}
		return nil, domain.NewExtractError(domain.ErrToolMissing,
			domain.UserMessage(domain.ErrToolMissing, ""))
	}

	entry := &activeDownload{
		download:    download,
		cancel:      cancel,
		subscribers: make(map[int]chan domain.Download),
		done:        make(chan struct{}),
	}

	dm.mu.Lock()
	dm.active[download.ID] = entry
	dm.mu.Unlock()

	if dm.repo != nil {
		if err := dm.repo.Create(download); err != nil {
			dm.logger.Error("Failed to persist download record", zap.Error(err))
		}
	}

	dm.logger.Info("Download started",
		zap.String("id", download.ID),
		zap.String("url", url),
		zap.String("platform", platform.Name))

	scanDone := make(chan struct{})
	go func() {
		dm.consumeOutput(entry, stdout)
		close(scanDone)
	}()
	go dm.supervise(entry, cmd, processLog, scanDone)

	snapshot := download.Snapshot()
	return &snapshot, nil
}

func (dm *DownloadManager) buildArgs(url, formatID string, audioOnly bool) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--restrict-filenames",
		"-o", "%(title)s_%(id)s.%(ext)s",
		"-P", dm.outputDir,
	}
	switch {
	case audioOnly:
		args = append(args, "-f", "bestaudio/best", "-x")
	case formatID != "":
		args = append(args, "-f", formatID+"+bestaudio/"+formatID+"/best")
	default:
		args = append(args, "-f", "best")
	}
	return append(args, url)
}

// consumeOutput turns the child's line-oriented stdout into state updates.
// Lines are buffered by newline here; the parser itself is stateless.
func (dm *DownloadManager) consumeOutput(entry *activeDownload, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		event := infrastructure.ParseProgressLine(scanner.Text())
		if event == nil {
			continue
		}

		dm.mu.Lock()
		switch event.Type {
		case infrastructure.EventProgress:
			entry.download.MarkDownloading(event.Percent,
				fmt.Sprintf("%.2f%siB/s", event.Speed, event.SpeedUnit), event.ETA)
		case infrastructure.EventDestination:
			entry.download.SetOutputPath(event.Path)
		case infrastructure.EventMerging:
			entry.download.MarkMerging(event.Path)
		case infrastructure.EventComplete:
			entry.download.MarkDownloading(100, "", "")
		}
		snapshot := entry.download.Snapshot()
		dm.broadcastLocked(entry, snapshot)
		dm.mu.Unlock()
	}
}

// supervise waits for the child to exit and drives the terminal transition.
// Cancellation marks the state before killing the process, so an exit
// observed after cancel must not overwrite the cancelled state.
func (dm *DownloadManager) supervise(entry *activeDownload, cmd *exec.Cmd, processLog *os.File, scanDone <-chan struct{}) {
	// Wait closes the stdout pipe as soon as the process exits, discarding
	// buffered trailing lines. The scanner must reach EOF first or a
	// fast-exiting child loses its last progress and destination events.
	<-scanDone
	err := cmd.Wait()

	dm.mu.Lock()
	d := entry.download
	// Cancellation marks and persists the terminal state itself; persisting
	// again here could resurrect a record deleted in between.
	cancelled := d.IsTerminal()
	switch {
	case cancelled:
	case err == nil:
		d.MarkCompleted()
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			d.MarkFailedExit(exitErr.ExitCode())
		} else {
			d.MarkFailed(err)
		}
	}
	snapshot := d.Snapshot()
	dm.broadcastLocked(entry, snapshot)
	for _, ch := range entry.subscribers {
		close(ch)
	}
	entry.subscribers = make(map[int]chan domain.Download)
	close(entry.done)
	dm.mu.Unlock()

	if processLog != nil {
		dm.writeLogFooter(processLog, snapshot.Status == domain.StatusCompleted, snapshot)
		processLog.Close()
	}

	if dm.repo != nil && !cancelled {
		if err := dm.repo.Update(&snapshot); err != nil {
			dm.logger.Error("Failed to persist download state", zap.Error(err))
		}
	}

	dm.logger.Info("Download finished",
		zap.String("id", snapshot.ID),
		zap.String("status", string(snapshot.Status)),
		zap.String("output", snapshot.OutputPath),
		zap.String("error", snapshot.ErrorMessage))
}

// Get returns the current state of a download, from the live set when
// present, otherwise from history.
func (dm *DownloadManager) Get(id string) (*domain.Download, error) {
	dm.mu.Lock()
	if entry, ok := dm.active[id]; ok {
		snapshot := entry.download.Snapshot()
		dm.mu.Unlock()
		return &snapshot, nil
	}
	dm.mu.Unlock()

	if dm.repo == nil {
		return nil, fmt.Errorf("download not found: %s", id)
	}
	return dm.repo.FindByID(id)
}

// Cancel terminates a running download. Cancelling a terminal or unknown
// download is a no-op, never an error.
func (dm *DownloadManager) Cancel(id string) error {
	dm.mu.Lock()
	entry, ok := dm.active[id]
	if !ok {
		dm.mu.Unlock()
		return dm.cancelPersisted(id)
	}
	if entry.download.IsTerminal() {
		dm.mu.Unlock()
		return nil
	}
	entry.download.MarkCancelled()
	snapshot := entry.download.Snapshot()
	dm.broadcastLocked(entry, snapshot)
	dm.mu.Unlock()

	// Killing after the state flip means supervise sees a terminal state and
	// leaves it alone.
	entry.cancel()

	if dm.repo != nil {
		if err := dm.repo.Update(&snapshot); err != nil {
			dm.logger.Error("Failed to persist cancellation", zap.Error(err))
		}
	}

	dm.logger.Info("Download cancelled", zap.String("id", id))
	return nil
}

func (dm *DownloadManager) cancelPersisted(id string) error {
	if dm.repo == nil {
		return nil
	}
	download, err := dm.repo.FindByID(id)
	if err != nil || download.IsTerminal() {
		return nil
	}
	download.MarkCancelled()
	return dm.repo.Update(download)
}

// Subscribe returns a channel of state snapshots for a download plus an
// unsubscribe function. The channel closes when the download reaches a
// terminal state. Subscribing to an unknown or finished download fails.
func (dm *DownloadManager) Subscribe(id string) (<-chan domain.Download, func(), error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	entry, ok := dm.active[id]
	if !ok {
		return nil, nil, fmt.Errorf("download not found: %s", id)
	}

	select {
	case <-entry.done:
		return nil, nil, fmt.Errorf("download already finished: %s", id)
	default:
	}

	ch := make(chan domain.Download, 16)
	subID := entry.nextSubID
	entry.nextSubID++
	entry.subscribers[subID] = ch

	unsubscribe := func() {
		dm.mu.Lock()
		defer dm.mu.Unlock()
		if sub, ok := entry.subscribers[subID]; ok {
			delete(entry.subscribers, subID)
			close(sub)
		}
	}
	return ch, unsubscribe, nil
}

// broadcastLocked fans a snapshot out to subscribers without blocking; a slow
// subscriber just misses intermediate updates.
func (dm *DownloadManager) broadcastLocked(entry *activeDownload, snapshot domain.Download) {
	for _, ch := range entry.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// List returns download history through the repository.
func (dm *DownloadManager) List(filters map[string]interface{}) ([]*domain.Download, error) {
	if dm.repo == nil {
		return nil, fmt.Errorf("no repository configured")
	}
	return dm.repo.FindAll(filters)
}

// Stats aggregates history counts per status.
func (dm *DownloadManager) Stats() (map[domain.DownloadStatus]int64, error) {
	if dm.repo == nil {
		return nil, fmt.Errorf("no repository configured")
	}
	return dm.repo.CountByStatus()
}

// Delete removes a download from history. Running downloads are cancelled
// first.
func (dm *DownloadManager) Delete(id string) error {
	_ = dm.Cancel(id)
	dm.mu.Lock()
	delete(dm.active, id)
	dm.mu.Unlock()
	if dm.repo == nil {
		return nil
	}
	return dm.repo.Delete(id)
}

// StartJanitor prunes terminal downloads from the live set once they are
// older than retain. History rows are untouched.
func (dm *DownloadManager) StartJanitor(interval, retain time.Duration) {
	dm.janitorStop = make(chan struct{})
	dm.janitorWg.Add(1)

	go func() {
		defer dm.janitorWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				dm.pruneTerminal(retain)
			case <-dm.janitorStop:
				return
			}
		}
	}()
}

// StopJanitor stops the prune loop.
func (dm *DownloadManager) StopJanitor() {
	if dm.janitorStop == nil {
		return
	}
	close(dm.janitorStop)
	dm.janitorWg.Wait()
	dm.janitorStop = nil
}

func (dm *DownloadManager) pruneTerminal(retain time.Duration) {
	cutoff := time.Now().Add(-retain)

	dm.mu.Lock()
	defer dm.mu.Unlock()
	for id, entry := range dm.active {
		if entry.download.IsTerminal() && entry.download.UpdatedAt.Before(cutoff) {
			delete(dm.active, id)
		}
	}
}

// openProcessLog opens the dated raw-output log shared by all downloads.
func (dm *DownloadManager) openProcessLog() (*os.File, error) {
	if err := os.MkdirAll(dm.logsDir, 0755); err != nil {
		return nil, err
	}
	dateStr := time.Now().Format("20060102")
	path := filepath.Join(dm.logsDir, "process-"+dateStr+".log")
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (dm *DownloadManager) writeLogHeader(file *os.File, downloadID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] Download: %s ===\n$ %s\n", timestamp, downloadID, cmdLine)
}

func (dm *DownloadManager) writeLogFooter(file *os.File, success bool, snapshot domain.Download) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	message := snapshot.OutputPath
	if !success {
		status = "FAILED"
		message = snapshot.ErrorMessage
	}
	fmt.Fprintf(file, "[%s] %s: %s\n=== END ===\n\n", timestamp, status, message)
}
