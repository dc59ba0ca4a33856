package infrastructure

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
)

func TestExtractImages_CollectsURLLines(t *testing.T) {
	runner := &scriptedRunner{responses: []runnerResponse{
		{stdout: "https://cdn.example.com/a.jpg\n\nhttps://cdn.example.com/b.jpg\n# comment line\n"},
	}}
	g := NewGalleryExtractor("gallery-dl", 0, runner, zap.NewNop())

	images, err := g.ExtractImages(context.Background(), "https://instagram.com/p/abc/")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "https://cdn.example.com/a.jpg", images[0].URL)
	assert.Equal(t, 0, images[0].Index)
	assert.Equal(t, 1, images[1].Index)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"-g", "https://instagram.com/p/abc/"}, runner.calls[0])
}

func TestExtractImages_EmptyOutputIsNoMedia(t *testing.T) {
	runner := &scriptedRunner{responses: []runnerResponse{{stdout: "\n"}}}
	g := NewGalleryExtractor("gallery-dl", 0, runner, zap.NewNop())

	_, err := g.ExtractImages(context.Background(), "https://instagram.com/p/abc/")
	var exErr *domain.ExtractError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, domain.ErrNoMediaFound, exErr.Kind)
}

func TestExtractImages_ToolFailureIsNoMedia(t *testing.T) {
	runner := &scriptedRunner{responses: []runnerResponse{
		{stderr: "error: unsupported site", err: &exec.ExitError{}},
	}}
	g := NewGalleryExtractor("gallery-dl", 0, runner, zap.NewNop())

	_, err := g.ExtractImages(context.Background(), "https://instagram.com/p/abc/")
	var exErr *domain.ExtractError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, domain.ErrNoMediaFound, exErr.Kind)
}

func TestExtractImages_ToolMissing(t *testing.T) {
	runner := &scriptedRunner{responses: []runnerResponse{{err: exec.ErrNotFound}}}
	g := NewGalleryExtractor("gallery-dl", 0, runner, zap.NewNop())

	_, err := g.ExtractImages(context.Background(), "https://instagram.com/p/abc/")
	var exErr *domain.ExtractError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, domain.ErrToolMissing, exErr.Kind)
}
