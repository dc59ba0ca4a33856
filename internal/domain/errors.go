package domain

import "strings"

// ErrorKind is the closed classification of extraction and download failures.
// The pipeline decides routing (retry, divert, surface) on the kind, never on
// the raw error text.
type ErrorKind string

const (
	ErrInvalidURL          ErrorKind = "invalid_url"
	ErrToolMissing         ErrorKind = "tool_missing"
	ErrExtractionFailed    ErrorKind = "extraction_failed"
	ErrAccessDenied        ErrorKind = "access_denied"
	ErrContentGone         ErrorKind = "content_gone"
	ErrUnsupportedURL      ErrorKind = "unsupported_url"
	ErrGeoBlocked          ErrorKind = "geo_blocked"
	ErrExtractorBroken     ErrorKind = "extractor_broken"
	ErrNoVideoFormats      ErrorKind = "no_video_formats"
	ErrUnsupportedLinkType ErrorKind = "unsupported_link_type"
	ErrNoMediaFound        ErrorKind = "no_media_found"
	ErrTimeout             ErrorKind = "timeout"
	ErrProcessExit         ErrorKind = "process_exit"
	ErrTooManyStreams      ErrorKind = "too_many_streams"
)

// ExtractError is the single typed error surfaced by the analysis and
// download paths. Message is safe to show to the end user.
type ExtractError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ExtractError) Error() string {
	return e.Message
}

// NewExtractError builds a typed error with a user-facing message.
func NewExtractError(kind ErrorKind, message string) *ExtractError {
	return &ExtractError{Kind: kind, Message: message}
}

// classificationRule maps a case-insensitive substring of tool error output to
// an error kind. Rules are checked in order; extend the table, not the control
// flow.
type classificationRule struct {
	substring string
	kind      ErrorKind
}

var classificationTable = []classificationRule{
	{"marked as broken", ErrExtractorBroken},
	{"no working app info", ErrExtractorBroken},
	{"no video formats", ErrNoVideoFormats},
	{"private", ErrAccessDenied},
	{"sign in", ErrAccessDenied},
	{"unavailable", ErrContentGone},
	{"unsupported url", ErrUnsupportedURL},
	{"ip address is blocked", ErrGeoBlocked},
	{"executable file not found", ErrToolMissing},
	{"no such file or directory", ErrToolMissing},
}

// ClassifyErrorText maps raw extraction tool error output to an ErrorKind by
// case-insensitive substring matching. Unmatched text classifies as a generic
// extraction failure.
func ClassifyErrorText(text string) ErrorKind {
	lower := strings.ToLower(text)
	for _, rule := range classificationTable {
		if strings.Contains(lower, rule.substring) {
			return rule.kind
		}
	}
	return ErrExtractionFailed
}

// UserMessage renders a human-readable message for a classified failure. The
// raw tool text is appended only for the unclassified case, where it is the
// only clue available.
func UserMessage(kind ErrorKind, raw string) string {
	switch kind {
	case ErrAccessDenied:
		return "This content is private or requires signing in"
	case ErrContentGone:
		return "This content is no longer available"
	case ErrUnsupportedURL:
		return "This URL is not supported"
	case ErrGeoBlocked:
		return "This content is blocked in the server's region"
	case ErrToolMissing:
		return "The media extraction tool is not installed or not executable; check the configured binary path"
	case ErrTimeout:
		return "The extraction timed out"
	case ErrNoMediaFound:
		return "No downloadable media was found at this URL"
	case ErrUnsupportedLinkType:
		return "This link type cannot be resolved; only video links are supported here"
	default:
		msg := "Failed to analyze this URL"
		if raw != "" {
			msg += ": " + firstLine(raw)
		}
		return msg
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
