package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
)

// memoryRepo is an in-memory DownloadRepository for manager tests.
type memoryRepo struct {
	mu    sync.Mutex
	items map[string]domain.Download
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]domain.Download)}
}

func (r *memoryRepo) Create(d *domain.Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[d.ID] = *d
	return nil
}

func (r *memoryRepo) Update(d *domain.Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[d.ID] = *d
	return nil
}

func (r *memoryRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) FindByID(id string) (*domain.Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("not found: %s", id)
	}
	return &d, nil
}

func (r *memoryRepo) FindAll(filters map[string]interface{}) ([]*domain.Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Download
	for _, d := range r.items {
		d := d
		out = append(out, &d)
	}
	return out, nil
}

func (r *memoryRepo) CountByStatus() (map[domain.DownloadStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.DownloadStatus]int64)
	for _, d := range r.items {
		counts[d.Status]++
	}
	return counts, nil
}

// writeStubTool drops an executable shell script standing in for the
// extraction tool.
func writeStubTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func newTestManager(t *testing.T, script string) (*DownloadManager, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	dir := t.TempDir()
	dm := NewDownloadManager(writeStubTool(t, script),
		filepath.Join(dir, "out"), filepath.Join(dir, "logs"), repo, zap.NewNop())
	return dm, repo
}

func waitTerminal(t *testing.T, dm *DownloadManager, id string) domain.Download {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		d, err := dm.Get(id)
		require.NoError(t, err)
		if d.IsTerminal() {
			return *d
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("download %s never reached a terminal state", id)
	return domain.Download{}
}

func TestDownloadManager_CompletesOnCleanExit(t *testing.T) {
	dm, repo := newTestManager(t, `
echo '[download] Destination: /tmp/video_abc.mp4'
echo '[download]  45.2% of ~50.25MiB at 1.20MiB/s ETA 00:25'
echo '[download] 100% of 50.25MiB'
exit 0`)

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)

	final := waitTerminal(t, dm, d.ID)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, 100.0, final.Progress)
	assert.Equal(t, "/tmp/video_abc.mp4", final.OutputPath)

	// Persistence trails the state transition by a beat; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if persisted, err := repo.FindByID(d.ID); err == nil && persisted.Status == domain.StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("completed state never reached history")
}

func TestDownloadManager_TrailingOutputSurvivesFastExit(t *testing.T) {
	// A child that prints its destination and exits immediately races the
	// scanner against process reaping; the final events must never be lost.
	dm, _ := newTestManager(t, `
echo '[download] Destination: /tmp/quick_video.mp4'
exit 0`)

	for i := 0; i < 50; i++ {
		d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
		require.NoError(t, err)

		final := waitTerminal(t, dm, d.ID)
		require.Equal(t, domain.StatusCompleted, final.Status, "iteration %d", i)
		require.Equal(t, "/tmp/quick_video.mp4", final.OutputPath,
			"destination line lost on iteration %d", i)
	}
}

func TestDownloadManager_FailureRecordsExitCode(t *testing.T) {
	dm, _ := newTestManager(t, `
echo 'ERROR: something went wrong' >&2
exit 3`)

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)

	final := waitTerminal(t, dm, d.ID)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, "exit code 3", final.ErrorMessage)
}

func TestDownloadManager_MissingBinary(t *testing.T) {
	repo := newMemoryRepo()
	dir := t.TempDir()
	dm := NewDownloadManager(filepath.Join(dir, "no-such-binary"),
		filepath.Join(dir, "out"), filepath.Join(dir, "logs"), repo, zap.NewNop())

	_, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	var exErr *domain.ExtractError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, domain.ErrToolMissing, exErr.Kind)
}

func TestDownloadManager_Cancel(t *testing.T) {
	dm, _ := newTestManager(t, `sleep 30`)

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)

	require.NoError(t, dm.Cancel(d.ID))
	final := waitTerminal(t, dm, d.ID)
	assert.Equal(t, domain.StatusCancelled, final.Status)

	// A second cancel and a cancel after the process reaper ran are no-ops.
	require.NoError(t, dm.Cancel(d.ID))
	got, err := dm.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestDownloadManager_CancelUnknownIsNoOp(t *testing.T) {
	dm, _ := newTestManager(t, `exit 0`)
	assert.NoError(t, dm.Cancel("no-such-id"))
}

func TestDownloadManager_SubscribeSeesTerminalSnapshot(t *testing.T) {
	dm, _ := newTestManager(t, `
sleep 0.2
echo '[download] 100% of 10MiB'
exit 0`)

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)

	ch, unsubscribe, err := dm.Subscribe(d.ID)
	require.NoError(t, err)
	defer unsubscribe()

	var last domain.Download
	for snapshot := range ch {
		last = snapshot
	}
	assert.Equal(t, domain.StatusCompleted, last.Status)
}

func TestDownloadManager_SubscribeUnknown(t *testing.T) {
	dm, _ := newTestManager(t, `exit 0`)
	_, _, err := dm.Subscribe("no-such-id")
	assert.Error(t, err)
}

func TestDownloadManager_GetFallsBackToHistoryAfterPrune(t *testing.T) {
	dm, _ := newTestManager(t, `exit 0`)

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)
	waitTerminal(t, dm, d.ID)

	dm.pruneTerminal(0)

	got, err := dm.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestDownloadManager_PruneKeepsRunningDownloads(t *testing.T) {
	dm, _ := newTestManager(t, `sleep 30`)

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)
	defer dm.Cancel(d.ID)

	dm.pruneTerminal(0)

	dm.mu.Lock()
	_, stillTracked := dm.active[d.ID]
	dm.mu.Unlock()
	assert.True(t, stillTracked)
}

func TestDownloadManager_DeleteCancelsAndRemoves(t *testing.T) {
	dm, repo := newTestManager(t, `sleep 30`)

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)

	require.NoError(t, dm.Delete(d.ID))

	_, err = repo.FindByID(d.ID)
	assert.Error(t, err)
}

func TestDownloadManager_ProcessLogWritten(t *testing.T) {
	repo := newMemoryRepo()
	dir := t.TempDir()
	logsDir := filepath.Join(dir, "logs")
	dm := NewDownloadManager(writeStubTool(t, `exit 0`),
		filepath.Join(dir, "out"), logsDir, repo, zap.NewNop())

	d, err := dm.Start("https://www.youtube.com/watch?v=abc", "", false)
	require.NoError(t, err)
	waitTerminal(t, dm, d.ID)

	// The footer lands just after the terminal transition; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	var content string
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(logsDir)
		require.NoError(t, err)
		if len(entries) == 1 {
			raw, err := os.ReadFile(filepath.Join(logsDir, entries[0].Name()))
			require.NoError(t, err)
			content = string(raw)
			if strings.Contains(content, "SUCCESS") {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Contains(t, content, "Download: "+d.ID)
	assert.Contains(t, content, "SUCCESS")
}
