package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
	"github.com/yourusername/mediagrab/internal/infrastructure"
)

// MediaExtractor runs the extraction strategy waterfall.
type MediaExtractor interface {
	Extract(ctx context.Context, url string, platform domain.PlatformDescriptor) (*domain.RawMediaInfo, error)
}

// ImageExtractor resolves direct image URLs for image-platform fallbacks.
type ImageExtractor interface {
	ExtractImages(ctx context.Context, url string) ([]domain.ImageRendition, error)
}

// PageScraper is the HTML fallback path for broken extractors.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*infrastructure.ScrapeResult, error)
}

// Analyzer orchestrates platform detection, the extraction waterfall, the
// divert routing on classified failure, and format normalization. Successful
// results are cached by URL for a freshness window.
type Analyzer struct {
	extractor MediaExtractor
	gallery   ImageExtractor
	scraper   PageScraper
	cacheTTL  time.Duration
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	result  *domain.AnalysisResult
	expires time.Time
}

// NewAnalyzer creates an analyzer wiring the three extraction paths together.
func NewAnalyzer(extractor MediaExtractor, gallery ImageExtractor, scraper PageScraper, cacheTTL time.Duration, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		extractor: extractor,
		gallery:   gallery,
		scraper:   scraper,
		cacheTTL:  cacheTTL,
		logger:    logger,
		cache:     make(map[string]cacheEntry),
	}
}

// Analyze resolves a URL into metadata plus ranked download options. Failures
// come back as a typed *domain.ExtractError carrying the classification.
func (a *Analyzer) Analyze(ctx context.Context, url string) (*domain.AnalysisResult, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, domain.NewExtractError(domain.ErrInvalidURL, "URL must start with http:// or https://")
	}

	if cached := a.lookupCache(url); cached != nil {
		return cached, nil
	}

	platform := domain.DetectPlatform(url)

	info, err := a.extractor.Extract(ctx, url, platform)
	if err == nil {
		result := buildVideoResult(info, platform)
		a.storeCache(url, result)
		return result, nil
	}

	var extractErr *domain.ExtractError
	if !errors.As(err, &extractErr) {
		return nil, err
	}

	a.logger.Info("Extraction failed, routing by classification",
		zap.String("url", url),
		zap.String("platform", platform.Name),
		zap.String("kind", string(extractErr.Kind)))

	// Classify-and-divert: a confirmed-broken extractor gets the HTML
	// scraper when the platform supports it; a no-video outcome or an image
	// platform gets the gallery tool; everything else surfaces as-is.
	switch {
	case extractErr.Kind == domain.ErrExtractorBroken && platform.SupportsFallback:
		result, ferr := a.analyzeViaFallback(ctx, url, platform)
		if ferr != nil {
			return nil, ferr
		}
		a.storeCache(url, result)
		return result, nil

	case extractErr.Kind == domain.ErrNoVideoFormats || platform.IsImagePlatform:
		result, gerr := a.analyzeViaGallery(ctx, url, platform)
		if gerr != nil {
			return nil, gerr
		}
		a.storeCache(url, result)
		return result, nil

	default:
		return nil, extractErr
	}
}

func (a *Analyzer) analyzeViaFallback(ctx context.Context, url string, platform domain.PlatformDescriptor) (*domain.AnalysisResult, error) {
	scraped, err := a.scraper.Scrape(ctx, url)
	if err != nil {
		var extractErr *domain.ExtractError
		if errors.As(err, &extractErr) {
			return nil, extractErr
		}
		return nil, domain.NewExtractError(domain.ErrNoMediaFound,
			domain.UserMessage(domain.ErrNoMediaFound, ""))
	}
	if !scraped.Success {
		return nil, domain.NewExtractError(domain.ErrNoMediaFound,
			domain.UserMessage(domain.ErrNoMediaFound, ""))
	}
	return buildFallbackResult(scraped.Record, url, platform), nil
}

func (a *Analyzer) analyzeViaGallery(ctx context.Context, url string, platform domain.PlatformDescriptor) (*domain.AnalysisResult, error) {
	images, err := a.gallery.ExtractImages(ctx, url)
	if err != nil {
		return nil, err
	}
	return &domain.AnalysisResult{
		Success: true,
		IsImage: true,
		Metadata: domain.MetadataView{
			WebpageURL: url,
			Platform:   platform,
		},
		Images: images,
	}, nil
}

func buildVideoResult(info *domain.RawMediaInfo, platform domain.PlatformDescriptor) *domain.AnalysisResult {
	options := domain.NormalizeFormats(info.Formats)
	return &domain.AnalysisResult{
		Success: true,
		Metadata: domain.MetadataView{
			Title:      info.Title,
			Uploader:   info.Uploader,
			Thumbnail:  info.Thumbnail,
			Duration:   info.Duration,
			ViewCount:  info.ViewCount,
			LikeCount:  info.LikeCount,
			WebpageURL: info.WebpageURL,
			Platform:   platform,
		},
		DownloadOptions: &options,
	}
}

// buildFallbackResult maps a scraped item record onto an analysis result. The
// record's field names follow the site's embedded state; downloads for
// fallback results go through the tool with the generic best selector.
func buildFallbackResult(record map[string]interface{}, url string, platform domain.PlatformDescriptor) *domain.AnalysisResult {
	meta := domain.MetadataView{
		Title:      stringField(record, "desc"),
		WebpageURL: url,
		Platform:   platform,
	}
	if author, ok := record["author"].(map[string]interface{}); ok {
		meta.Uploader = stringField(author, "nickname")
	} else {
		meta.Uploader = stringField(record, "author")
	}
	if video, ok := record["video"].(map[string]interface{}); ok {
		meta.Thumbnail = stringField(video, "cover")
		if d, ok := video["duration"].(float64); ok {
			meta.Duration = d
		}
	}

	return &domain.AnalysisResult{
		Success:  true,
		Metadata: meta,
		DownloadOptions: &domain.DownloadOptions{
			Video: []domain.RenditionFormat{{
				FormatID: "best",
				Quality:  "Original",
				Ext:      "mp4",
				HasAudio: true,
			}},
		},
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func (a *Analyzer) lookupCache(url string) *domain.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.cache[url]
	if !ok {
		return nil
	}
	if time.Now().After(entry.expires) {
		delete(a.cache, url)
		return nil
	}
	return entry.result
}

func (a *Analyzer) storeCache(url string, result *domain.AnalysisResult) {
	if a.cacheTTL <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	// Opportunistic prune keeps the map from growing without a ticker.
	now := time.Now()
	for key, entry := range a.cache {
		if now.After(entry.expires) {
			delete(a.cache, key)
		}
	}
	a.cache[url] = cacheEntry{result: result, expires: now.Add(a.cacheTTL)}
}
