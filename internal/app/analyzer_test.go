package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
	"github.com/yourusername/mediagrab/internal/infrastructure"
)

type fakeExtractor struct {
	info  *domain.RawMediaInfo
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ domain.PlatformDescriptor) (*domain.RawMediaInfo, error) {
	f.calls++
	return f.info, f.err
}

type fakeGallery struct {
	images []domain.ImageRendition
	err    error
	calls  int
}

func (f *fakeGallery) ExtractImages(_ context.Context, _ string) ([]domain.ImageRendition, error) {
	f.calls++
	return f.images, f.err
}

type fakeScraper struct {
	result *infrastructure.ScrapeResult
	err    error
	calls  int
}

func (f *fakeScraper) Scrape(_ context.Context, _ string) (*infrastructure.ScrapeResult, error) {
	f.calls++
	return f.result, f.err
}

func intPtr(v int) *int { return &v }

func newTestAnalyzer(e *fakeExtractor, g *fakeGallery, s *fakeScraper, ttl time.Duration) *Analyzer {
	return NewAnalyzer(e, g, s, ttl, zap.NewNop())
}

func TestAnalyze_RejectsNonHTTPURL(t *testing.T) {
	a := newTestAnalyzer(&fakeExtractor{}, &fakeGallery{}, &fakeScraper{}, 0)

	for _, url := range []string{"ftp://example.com/v", "not a url", ""} {
		_, err := a.Analyze(context.Background(), url)
		var exErr *domain.ExtractError
		require.ErrorAs(t, err, &exErr, "url %q", url)
		assert.Equal(t, domain.ErrInvalidURL, exErr.Kind)
	}
}

func TestAnalyze_VideoSuccess(t *testing.T) {
	extractor := &fakeExtractor{info: &domain.RawMediaInfo{
		Title:    "a video",
		Uploader: "someone",
		Formats: []domain.RawFormat{
			{FormatID: "22", VideoCodec: "avc1", AudioCodec: "mp4a", Height: intPtr(720)},
		},
	}}
	gallery := &fakeGallery{}
	scraper := &fakeScraper{}
	a := newTestAnalyzer(extractor, gallery, scraper, 0)

	result, err := a.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "a video", result.Metadata.Title)
	assert.Equal(t, "YouTube", result.Metadata.Platform.Name)
	require.NotNil(t, result.DownloadOptions)
	require.Len(t, result.DownloadOptions.Video, 1)
	assert.Equal(t, "720p", result.DownloadOptions.Video[0].Quality)

	assert.Zero(t, gallery.calls)
	assert.Zero(t, scraper.calls)
}

func TestAnalyze_BrokenExtractorDivertsToScraper(t *testing.T) {
	extractor := &fakeExtractor{err: domain.NewExtractError(domain.ErrExtractorBroken, "broken")}
	scraper := &fakeScraper{result: &infrastructure.ScrapeResult{
		Success: true,
		Record: map[string]interface{}{
			"desc":   "scraped clip",
			"author": map[string]interface{}{"nickname": "creator"},
			"video":  map[string]interface{}{"cover": "https://cdn/c.jpg", "duration": 12.0},
		},
	}}
	a := newTestAnalyzer(extractor, &fakeGallery{}, scraper, 0)

	result, err := a.Analyze(context.Background(), "https://www.tiktok.com/@user/video/1")
	require.NoError(t, err)
	assert.Equal(t, 1, scraper.calls)
	assert.Equal(t, "scraped clip", result.Metadata.Title)
	assert.Equal(t, "creator", result.Metadata.Uploader)
	assert.Equal(t, 12.0, result.Metadata.Duration)
	require.Len(t, result.DownloadOptions.Video, 1)
	assert.Equal(t, "best", result.DownloadOptions.Video[0].FormatID)
	assert.Equal(t, "Original", result.DownloadOptions.Video[0].Quality)
}

func TestAnalyze_BrokenExtractorWithoutFallbackSurfaces(t *testing.T) {
	// YouTube does not support the HTML fallback, so a broken classification
	// surfaces instead of diverting.
	extractor := &fakeExtractor{err: domain.NewExtractError(domain.ErrExtractorBroken, "broken")}
	scraper := &fakeScraper{}
	a := newTestAnalyzer(extractor, &fakeGallery{}, scraper, 0)

	_, err := a.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
	var exErr *domain.ExtractError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, domain.ErrExtractorBroken, exErr.Kind)
	assert.Zero(t, scraper.calls)
}

func TestAnalyze_ScrapeMissBecomesNoMediaFound(t *testing.T) {
	extractor := &fakeExtractor{err: domain.NewExtractError(domain.ErrExtractorBroken, "broken")}
	scraper := &fakeScraper{result: &infrastructure.ScrapeResult{Success: false}}
	a := newTestAnalyzer(extractor, &fakeGallery{}, scraper, 0)

	_, err := a.Analyze(context.Background(), "https://www.tiktok.com/@user/video/1")
	var exErr *domain.ExtractError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, domain.ErrNoMediaFound, exErr.Kind)
}

func TestAnalyze_ScraperTypedErrorPassesThrough(t *testing.T) {
	extractor := &fakeExtractor{err: domain.NewExtractError(domain.ErrExtractorBroken, "broken")}
	scraper := &fakeScraper{err: domain.NewExtractError(domain.ErrUnsupportedLinkType, "music link")}
	a := newTestAnalyzer(extractor, &fakeGallery{}, scraper, 0)

	_, err := a.Analyze(context.Background(), "https://www.tiktok.com/music/sound-1")
	var exErr *domain.ExtractError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, domain.ErrUnsupportedLinkType, exErr.Kind)
}

func TestAnalyze_NoVideoFormatsDivertsToGallery(t *testing.T) {
	extractor := &fakeExtractor{err: domain.NewExtractError(domain.ErrNoVideoFormats, "no formats")}
	gallery := &fakeGallery{images: []domain.ImageRendition{{URL: "https://cdn/a.jpg"}}}
	a := newTestAnalyzer(extractor, gallery, &fakeScraper{}, 0)

	result, err := a.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, 1, gallery.calls)
	assert.True(t, result.IsImage)
	require.Len(t, result.Images, 1)
}

func TestAnalyze_ImagePlatformDivertsToGalleryOnAnyFailure(t *testing.T) {
	// An Instagram post that fails extraction for an unrelated reason still
	// gets the gallery attempt because the platform is image-first.
	extractor := &fakeExtractor{err: domain.NewExtractError(domain.ErrExtractionFailed, "nope")}
	gallery := &fakeGallery{images: []domain.ImageRendition{{URL: "https://cdn/a.jpg"}}}
	a := newTestAnalyzer(extractor, gallery, &fakeScraper{}, 0)

	result, err := a.Analyze(context.Background(), "https://www.instagram.com/p/abc/")
	require.NoError(t, err)
	assert.Equal(t, 1, gallery.calls)
	assert.True(t, result.IsImage)
}

func TestAnalyze_OtherClassificationsSurface(t *testing.T) {
	for _, kind := range []domain.ErrorKind{
		domain.ErrAccessDenied,
		domain.ErrContentGone,
		domain.ErrGeoBlocked,
		domain.ErrToolMissing,
	} {
		extractor := &fakeExtractor{err: domain.NewExtractError(kind, "x")}
		gallery := &fakeGallery{}
		a := newTestAnalyzer(extractor, gallery, &fakeScraper{}, 0)

		_, err := a.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
		var exErr *domain.ExtractError
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, kind, exErr.Kind)
		assert.Zero(t, gallery.calls)
	}
}

func TestAnalyze_UntypedErrorSurfacesUnchanged(t *testing.T) {
	boom := errors.New("context torn down")
	extractor := &fakeExtractor{err: boom}
	a := newTestAnalyzer(extractor, &fakeGallery{}, &fakeScraper{}, 0)

	_, err := a.Analyze(context.Background(), "https://www.youtube.com/watch?v=abc")
	assert.ErrorIs(t, err, boom)
}

func TestAnalyze_CacheHitSkipsExtraction(t *testing.T) {
	extractor := &fakeExtractor{info: &domain.RawMediaInfo{Title: "cached"}}
	a := newTestAnalyzer(extractor, &fakeGallery{}, &fakeScraper{}, time.Minute)

	url := "https://www.youtube.com/watch?v=abc"
	first, err := a.Analyze(context.Background(), url)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.calls)
	assert.Same(t, first, second)
}

func TestAnalyze_FailuresAreNotCached(t *testing.T) {
	extractor := &fakeExtractor{err: domain.NewExtractError(domain.ErrContentGone, "gone")}
	a := newTestAnalyzer(extractor, &fakeGallery{}, &fakeScraper{}, time.Minute)

	url := "https://www.youtube.com/watch?v=abc"
	_, err := a.Analyze(context.Background(), url)
	require.Error(t, err)
	_, err = a.Analyze(context.Background(), url)
	require.Error(t, err)

	assert.Equal(t, 2, extractor.calls)
}
