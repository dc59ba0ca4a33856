package infrastructure

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
)

// GalleryExtractor resolves direct image URLs through the external gallery
// tool. It is the fallback for image platforms and for pages where the video
// extractor found no video formats.
type GalleryExtractor struct {
	binary  string
	timeout time.Duration
	runner  CommandRunner
	logger  *zap.Logger
}

// NewGalleryExtractor creates a gallery extractor for the given binary.
func NewGalleryExtractor(binary string, timeout time.Duration, runner CommandRunner, logger *zap.Logger) *GalleryExtractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &GalleryExtractor{binary: binary, timeout: timeout, runner: runner, logger: logger}
}

// ExtractImages runs the gallery tool in URL-listing mode (-g) and collects
// one direct image URL per stdout line. Empty output classifies as no media
// found rather than success with an empty list.
func (g *GalleryExtractor) ExtractImages(ctx context.Context, url string) ([]domain.ImageRendition, error) {
	runCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	stdout, stderr, err := g.runner.Run(runCtx, g.binary, []string{"-g", url})
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, domain.NewExtractError(domain.ErrToolMissing,
				domain.UserMessage(domain.ErrToolMissing, ""))
		}
		g.logger.Warn("Gallery extraction failed",
			zap.String("url", url),
			zap.String("error", firstLines(string(stderr), 3)))
		return nil, domain.NewExtractError(domain.ErrNoMediaFound,
			domain.UserMessage(domain.ErrNoMediaFound, ""))
	}

	var images []domain.ImageRendition
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "http") {
			continue
		}
		images = append(images, domain.ImageRendition{URL: line, Index: len(images)})
	}

	if len(images) == 0 {
		return nil, domain.NewExtractError(domain.ErrNoMediaFound,
			domain.UserMessage(domain.ErrNoMediaFound, ""))
	}
	return images, nil
}
