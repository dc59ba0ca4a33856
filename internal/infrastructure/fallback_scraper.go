package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab/internal/domain"
)

// ScrapeResult is the outcome of one fallback scrape. When no item record can
// be located inside the embedded state, Success is false and HTML carries the
// raw page for inspection; that is a miss, not a failure.
type ScrapeResult struct {
	Success bool
	Record  map[string]interface{}
	HTML    string
}

// FallbackScraper fetches a page directly and digs the item record out of its
// embedded JSON state. It is used only when the extraction tool's support for
// the platform is confirmed broken.
type FallbackScraper struct {
	client       *http.Client
	maxRedirects int
	logger       *zap.Logger
}

// Embedded-state script tags, tried in order: the current rehydration blob,
// then the legacy state the site shipped before it.
var embeddedJSONPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__"[^>]*>(.*?)</script>`),
	regexp.MustCompile(`<script id="SIGI_STATE"[^>]*>(.*?)</script>`),
}

// The fallback path can only resolve video pages; music and sound URLs are
// rejected before any network I/O.
var audioOnlyURLPattern = regexp.MustCompile(`/(music|sound)/`)

// NewFallbackScraper creates a scraper with the given fetch timeout and
// redirect cap.
func NewFallbackScraper(fetchTimeout time.Duration, maxRedirects int, logger *zap.Logger) *FallbackScraper {
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	s := &FallbackScraper{maxRedirects: maxRedirects, logger: logger}
	s.client = &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= s.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", s.maxRedirects)
			}
			return nil
		},
	}
	return s
}

// Scrape fetches the page with browser-like headers and attempts to locate
// the item record inside one of the known embedded-JSON shapes.
func (s *FallbackScraper) Scrape(ctx context.Context, url string) (*ScrapeResult, error) {
	if audioOnlyURLPattern.MatchString(url) {
		return nil, domain.NewExtractError(domain.ErrUnsupportedLinkType,
			domain.UserMessage(domain.ErrUnsupportedLinkType, ""))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewExtractError(domain.ErrInvalidURL, "Invalid URL: "+url)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, domain.NewExtractError(domain.ErrTimeout,
				domain.UserMessage(domain.ErrTimeout, ""))
		}
		return nil, fmt.Errorf("fallback fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fallback fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fallback fetch read failed: %w", err)
	}
	html := string(body)

	for _, pattern := range embeddedJSONPatterns {
		m := pattern.FindStringSubmatch(html)
		if m == nil {
			continue
		}

		var state map[string]interface{}
		if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
			s.logger.Warn("Embedded JSON did not parse", zap.String("url", url), zap.Error(err))
			continue
		}

		if record, ok := locateItemRecord(state); ok {
			return &ScrapeResult{Success: true, Record: record, HTML: html}, nil
		}
	}

	return &ScrapeResult{Success: false, HTML: html}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// itemRecordExtractor attempts one known nested shape and reports whether it
// found the record. The site reshapes its embedded state without notice, so
// the shapes are tried in order and a total miss is non-fatal.
type itemRecordExtractor func(state map[string]interface{}) (map[string]interface{}, bool)

var itemRecordExtractors = []itemRecordExtractor{
	rehydrationItemRecord,
	legacyItemRecord,
}

func locateItemRecord(state map[string]interface{}) (map[string]interface{}, bool) {
	for _, extract := range itemRecordExtractors {
		if record, ok := extract(state); ok {
			return record, true
		}
	}
	return nil, false
}

// rehydrationItemRecord digs through the current-generation shape:
// __DEFAULT_SCOPE__ -> webapp.video-detail -> itemInfo -> itemStruct.
func rehydrationItemRecord(state map[string]interface{}) (map[string]interface{}, bool) {
	scope, ok := asMap(state["__DEFAULT_SCOPE__"])
	if !ok {
		return nil, false
	}
	detail, ok := asMap(scope["webapp.video-detail"])
	if !ok {
		return nil, false
	}
	itemInfo, ok := asMap(detail["itemInfo"])
	if !ok {
		return nil, false
	}
	return asMap(itemInfo["itemStruct"])
}

// legacyItemRecord handles the older item-keyed map shape: ItemModule holds
// records keyed by item id; any entry is the record.
func legacyItemRecord(state map[string]interface{}) (map[string]interface{}, bool) {
	module, ok := asMap(state["ItemModule"])
	if !ok {
		return nil, false
	}
	for _, v := range module {
		if record, ok := asMap(v); ok {
			return record, true
		}
	}
	return nil, false
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}
