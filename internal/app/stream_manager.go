package app

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
)

// StreamManager admits direct-streaming sessions under a global concurrency
// ceiling. Each session owns one child process whose stdout is the stream
// body. Requests beyond the ceiling are rejected immediately, never queued.
type StreamManager struct {
	binary string
	max    int
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*StreamSession
}

// StreamSession is one in-flight direct stream. Close is idempotent and
// releases the session's ceiling slot exactly once, no matter how many of the
// disconnect, cancel, and process-exit paths fire.
type StreamSession struct {
	ID     string
	Stdout io.ReadCloser

	mgr       *StreamManager
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	stderr    *bytes.Buffer
	closeOnce sync.Once

	waitOnce sync.Once
	waitErr  error
}

// NewStreamManager creates a stream manager with the given ceiling.
func NewStreamManager(binary string, maxConcurrent int, logger *zap.Logger) *StreamManager {
	return &StreamManager{
		binary: binary,
		max:    maxConcurrent,
		logger: logger,
		active: make(map[string]*StreamSession),
	}
}

// ActiveCount returns the number of in-flight sessions.
func (sm *StreamManager) ActiveCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.active)
}

// Open admits a new streaming session, spawning the tool with its output
// directed to stdout. At the ceiling it rejects before spawning anything.
func (sm *StreamManager) Open(ctx context.Context, url, formatID string, audioOnly bool) (*StreamSession, error) {
	sm.mu.Lock()
	if len(sm.active) >= sm.max {
		sm.mu.Unlock()
		return nil, domain.NewExtractError(domain.ErrTooManyStreams,
			"Too many simultaneous streams; try again shortly")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	args := sm.buildArgs(url, formatID, audioOnly)
	cmd := exec.CommandContext(streamCtx, sm.binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		sm.mu.Unlock()
		cancel()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		sm.mu.Unlock()
		cancel()
		return nil, domain.NewExtractError(domain.ErrToolMissing,
			domain.UserMessage(domain.ErrToolMissing, ""))
	}

	session := &StreamSession{
		ID:     uuid.New().String(),
		Stdout: stdout,
		mgr:    sm,
		cmd:    cmd,
		cancel: cancel,
		stderr: &stderr,
	}
	// Insert happens under the same lock as the admission check so the set
	// can never exceed the ceiling between the two.
	sm.active[session.ID] = session
	sm.mu.Unlock()

	sm.logger.Info("Stream opened",
		zap.String("stream_id", session.ID),
		zap.String("url", url),
		zap.Int("active", sm.ActiveCount()))

	return session, nil
}

func (sm *StreamManager) buildArgs(url, formatID string, audioOnly bool) []string {
	args := []string{"--no-playlist", "-o", "-"}
	switch {
	case audioOnly:
		args = append(args, "-f", "bestaudio/best")
	case formatID != "":
		args = append(args, "-f", formatID)
	default:
		args = append(args, "-f", "best")
	}
	return append(args, url)
}

// Wait blocks until the child exits and returns its exit error. Safe to call
// from multiple paths; only the first call waits.
func (s *StreamSession) Wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// StderrIndicatesError reports whether the tool's diagnostic output contains
// an error marker. For streams this is the failure signal, not the exit code:
// partial content may already be on the wire when the process dies.
func (s *StreamSession) StderrIndicatesError() bool {
	return strings.Contains(strings.ToLower(s.stderr.String()), "error")
}

// StderrExcerpt returns the tail of the diagnostic output for logging.
func (s *StreamSession) StderrExcerpt() string {
	out := strings.TrimSpace(s.stderr.String())
	const max = 512
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// Close terminates the child and releases the ceiling slot. Idempotent:
// disconnect, explicit cancel, and exit cleanup may all call it.
func (s *StreamSession) Close() {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mgr.mu.Lock()
		delete(s.mgr.active, s.ID)
		remaining := len(s.mgr.active)
		s.mgr.mu.Unlock()

		s.mgr.logger.Info("Stream closed",
			zap.String("stream_id", s.ID),
			zap.Int("active", remaining))
	})
}
