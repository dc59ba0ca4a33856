package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ExtractionStrategy is one ordered argument set for an extraction attempt.
// Strategies for a platform weaken their identity signal as the index grows.
type ExtractionStrategy struct {
	Name string
	Args []string
}

// Extractor runs the extraction tool through a waterfall of strategies and
// classifies the terminal failure when all of them lose.
type Extractor struct {
	binary  string
	timeout time.Duration
	runner  CommandRunner
	logger  *zap.Logger
}

// NewExtractor creates an extractor for the given yt-dlp binary.
func NewExtractor(binary string, timeout time.Duration, runner CommandRunner, logger *zap.Logger) *Extractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Extractor{binary: binary, timeout: timeout, runner: runner, logger: logger}
}

// StrategiesFor builds the ordered strategy list for a platform. Ordinary
// platforms get a single plain attempt. Platforms with unstable extractor
// support get four attempts, each weaker in identity signaling than the last:
// impersonation with full browser headers, bare user-agent plus referer,
// ambient browser cookies, and finally no special arguments.
func StrategiesFor(platform domain.PlatformDescriptor, url string) []ExtractionStrategy {
	if !platform.UnstableExtractor {
		return []ExtractionStrategy{{Name: "default"}}
	}

	referer := refererFor(url)
	return []ExtractionStrategy{
		{
			Name: "impersonate",
			Args: []string{
				"--impersonate", "chrome",
				"--user-agent", browserUserAgent,
				"--referer", referer,
				"--add-header", "Accept-Language:en-US,en;q=0.9",
				"--add-header", "Sec-Fetch-Mode:navigate",
			},
		},
		{
			Name: "browser-headers",
			Args: []string{
				"--user-agent", browserUserAgent,
				"--referer", referer,
			},
		},
		{
			Name: "browser-cookies",
			Args: []string{"--cookies-from-browser", "chrome"},
		},
		{
			Name: "bare",
		},
	}
}

func refererFor(url string) string {
	lower := strings.ToLower(url)
	if i := strings.Index(lower, "://"); i >= 0 {
		rest := lower[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return lower[:i+3+j] + "/"
		}
	}
	return url
}

// Extract runs the strategy waterfall for the URL's platform. Strategies run
// strictly in order and the first success returns immediately; intermediate
// failures are recorded but never surfaced. When every strategy fails, the
// LAST recorded error text is classified and returned as a typed error so the
// caller can route to a fallback path.
func (e *Extractor) Extract(ctx context.Context, url string, platform domain.PlatformDescriptor) (*domain.RawMediaInfo, error) {
	strategies := StrategiesFor(platform, url)

	var lastErrText string
	for i, strategy := range strategies {
		info, errText, err := e.runStrategy(ctx, url, strategy)
		if err == nil {
			e.logger.Info("Extraction succeeded",
				zap.String("url", url),
				zap.String("strategy", strategy.Name),
				zap.Int("attempt", i+1))
			return info, nil
		}

		if errors.Is(err, context.DeadlineExceeded) {
			lastErrText = "extraction timed out"
		} else if errText != "" {
			lastErrText = errText
		} else {
			lastErrText = err.Error()
		}

		if errors.Is(err, exec.ErrNotFound) {
			return nil, domain.NewExtractError(domain.ErrToolMissing,
				domain.UserMessage(domain.ErrToolMissing, ""))
		}
		if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, ctx.Err()
		}

		e.logger.Warn("Extraction strategy failed",
			zap.String("url", url),
			zap.String("strategy", strategy.Name),
			zap.Int("attempt", i+1),
			zap.String("error", firstLines(lastErrText, 3)))
	}

	kind := domain.ClassifyErrorText(lastErrText)
	return nil, domain.NewExtractError(kind, domain.UserMessage(kind, lastErrText))
}

// runStrategy executes one strategy. Success requires exit zero AND stdout
// parsing as a JSON document carrying at least a title or a format list.
func (e *Extractor) runStrategy(ctx context.Context, url string, strategy ExtractionStrategy) (*domain.RawMediaInfo, string, error) {
	args := append([]string{
		"--dump-json",
		"--no-warnings",
		"--no-playlist",
	}, strategy.Args...)
	args = append(args, url)

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	stdout, stderr, err := e.runner.Run(runCtx, e.binary, args)
	if err != nil {
		// exec reports a context-killed child as "signal: killed"; the
		// deadline on runCtx is the real cause and the waterfall keys on it.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = context.DeadlineExceeded
		}
		return nil, string(stderr), err
	}

	var info domain.RawMediaInfo
	if jsonErr := json.Unmarshal(stdout, &info); jsonErr != nil {
		return nil, string(stderr), fmt.Errorf("malformed tool output: %w", jsonErr)
	}
	if info.Title == "" && len(info.Formats) == 0 {
		return nil, string(stderr), fmt.Errorf("tool output carries no title and no formats")
	}
	return &info, "", nil
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(strings.TrimSpace(s), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " | ")
}
