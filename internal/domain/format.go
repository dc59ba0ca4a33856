package domain

// RawMediaInfo is the JSON document the extraction tool emits in info mode.
// Only the fields the pipeline consumes are mapped; the rest of the document
// is ignored.
type RawMediaInfo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Uploader    string      `json:"uploader"`
	UploaderID  string      `json:"uploader_id"`
	Thumbnail   string      `json:"thumbnail"`
	Duration    float64     `json:"duration"`
	ViewCount   int64       `json:"view_count"`
	LikeCount   int64       `json:"like_count"`
	WebpageURL  string      `json:"webpage_url"`
	Ext         string      `json:"ext"`
	Formats     []RawFormat `json:"formats"`
}

// RawFormat is one heterogeneous rendition descriptor from the tool's format
// array. Numeric fields are pointers because the tool omits them freely and
// zero is a meaningful value for several of them.
type RawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VideoCodec     string   `json:"vcodec"`
	AudioCodec     string   `json:"acodec"`
	Height         *int     `json:"height"`
	Width          *int     `json:"width"`
	FPS            *float64 `json:"fps"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	AudioBitrate   *float64 `json:"abr"`
	TotalBitrate   *float64 `json:"tbr"`
	FormatNote     string   `json:"format_note"`
}

// HasVideo reports whether this raw format carries a video stream.
func (f *RawFormat) HasVideo() bool {
	return f.VideoCodec != "" && f.VideoCodec != "none"
}

// HasAudio reports whether this raw format carries an audio stream.
func (f *RawFormat) HasAudio() bool {
	return f.AudioCodec != "" && f.AudioCodec != "none"
}

// RenditionFormat is one normalized, user-selectable download option.
type RenditionFormat struct {
	FormatID    string   `json:"format_id"`
	Quality     string   `json:"quality"`
	Resolution  string   `json:"resolution,omitempty"`
	FPS         float64  `json:"fps,omitempty"`
	SizeMB      *float64 `json:"size_mb"`
	Ext         string   `json:"ext"`
	VideoCodec  string   `json:"vcodec,omitempty"`
	AudioCodec  string   `json:"acodec,omitempty"`
	HasAudio    bool     `json:"has_audio"`
	IsVideoOnly bool     `json:"is_video_only"`
}

// ImageRendition is one direct image URL produced by the gallery tool.
type ImageRendition struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// DownloadOptions holds the ranked rendition lists for a video analysis.
type DownloadOptions struct {
	Video []RenditionFormat `json:"video"`
	Audio []RenditionFormat `json:"audio"`
}

// MetadataView is the display metadata attached to an analysis result.
type MetadataView struct {
	Title      string             `json:"title"`
	Uploader   string             `json:"uploader"`
	Thumbnail  string             `json:"thumbnail"`
	Duration   float64            `json:"duration"`
	ViewCount  int64              `json:"view_count"`
	LikeCount  int64              `json:"like_count"`
	WebpageURL string             `json:"webpage_url"`
	Platform   PlatformDescriptor `json:"platform"`
}

// AnalysisResult is the cacheable outcome of analyzing one URL. Exactly one of
// DownloadOptions or Images is populated depending on IsImage.
type AnalysisResult struct {
	Success         bool             `json:"success"`
	IsImage         bool             `json:"is_image"`
	Metadata        MetadataView     `json:"metadata"`
	DownloadOptions *DownloadOptions `json:"download_options,omitempty"`
	Images          []ImageRendition `json:"images,omitempty"`
}
