package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	maxVideoRenditions = 10
	maxAudioRenditions = 5
)

// NormalizeFormats maps the tool's raw format array into deduplicated, ranked
// video and audio rendition lists. Entries without a format id are skipped.
// A format goes to the video list iff it carries a video stream and to the
// audio list iff it is audio-only; the two lists never share an entry.
func NormalizeFormats(raw []RawFormat) DownloadOptions {
	var video []RenditionFormat
	var audio []audioCandidate

	for i := range raw {
		f := &raw[i]
		if f.FormatID == "" {
			continue
		}

		switch {
		case f.HasVideo():
			video = append(video, RenditionFormat{
				FormatID:    f.FormatID,
				Quality:     qualityLabel(f.Height),
				Resolution:  resolutionString(f.Width, f.Height),
				FPS:         fpsValue(f.FPS),
				SizeMB:      sizeMB(f),
				Ext:         f.Ext,
				VideoCodec:  f.VideoCodec,
				AudioCodec:  codecOrEmpty(f.AudioCodec),
				HasAudio:    f.HasAudio(),
				IsVideoOnly: !f.HasAudio(),
			})
		case f.HasAudio():
			audio = append(audio, audioCandidate{
				rendition: RenditionFormat{
					FormatID:   f.FormatID,
					Quality:    audioQualityLabel(f),
					SizeMB:     sizeMB(f),
					Ext:        f.Ext,
					AudioCodec: f.AudioCodec,
					HasAudio:   true,
				},
				bitrate: audioBitrate(f),
			})
		}
	}

	// Descending quality sort first so the dedup keeps the best entry for each
	// (label, fps) pair.
	sort.SliceStable(video, func(i, j int) bool {
		return qualityValue(video[i].Quality) > qualityValue(video[j].Quality)
	})
	video = dedupVideo(video)
	if len(video) > maxVideoRenditions {
		video = video[:maxVideoRenditions]
	}

	sort.SliceStable(audio, func(i, j int) bool {
		return audio[i].bitrate > audio[j].bitrate
	})
	if len(audio) > maxAudioRenditions {
		audio = audio[:maxAudioRenditions]
	}
	audioList := make([]RenditionFormat, len(audio))
	for i, a := range audio {
		audioList[i] = a.rendition
	}

	return DownloadOptions{Video: video, Audio: audioList}
}

type audioCandidate struct {
	rendition RenditionFormat
	bitrate   float64
}

// qualityLabel maps a pixel height onto the fixed quality ladder.
func qualityLabel(height *int) string {
	if height == nil || *height <= 0 {
		return "Unknown"
	}
	h := *height
	switch {
	case h >= 2160:
		return "4K"
	case h >= 1440:
		return "1440p"
	case h >= 1080:
		return "1080p"
	case h >= 720:
		return "720p"
	case h >= 480:
		return "480p"
	case h >= 360:
		return "360p"
	default:
		return fmt.Sprintf("%dp", h)
	}
}

// qualityValue parses the numeric rank back out of a quality label for
// sorting. "4K" ranks as 2160; "Unknown" ranks last.
func qualityValue(label string) int {
	if label == "4K" {
		return 2160
	}
	n, err := strconv.Atoi(strings.TrimSuffix(label, "p"))
	if err != nil {
		return 0
	}
	return n
}

func resolutionString(width, height *int) string {
	if width == nil || height == nil || *width <= 0 || *height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", *width, *height)
}

func fpsValue(fps *float64) float64 {
	if fps == nil {
		return 0
	}
	return *fps
}

func codecOrEmpty(codec string) string {
	if codec == "none" {
		return ""
	}
	return codec
}

// sizeMB prefers the exact filesize, falls back to the approximate one, and
// returns nil when neither is present. Absent is nil, never zero.
func sizeMB(f *RawFormat) *float64 {
	var bytes int64
	switch {
	case f.Filesize != nil && *f.Filesize > 0:
		bytes = *f.Filesize
	case f.FilesizeApprox != nil && *f.FilesizeApprox > 0:
		bytes = *f.FilesizeApprox
	default:
		return nil
	}
	mb := math.Round(float64(bytes)/1024/1024*10) / 10
	return &mb
}

func audioBitrate(f *RawFormat) float64 {
	if f.AudioBitrate != nil {
		return *f.AudioBitrate
	}
	if f.TotalBitrate != nil {
		return *f.TotalBitrate
	}
	return 0
}

func audioQualityLabel(f *RawFormat) string {
	if br := audioBitrate(f); br > 0 {
		return fmt.Sprintf("%.0fkbps", br)
	}
	if f.FormatNote != "" {
		return f.FormatNote
	}
	return "Audio"
}

// dedupVideo drops later entries sharing a (quality label, rounded fps) pair.
// The input is sorted descending by quality, so the first occurrence is the
// highest-ranked one.
func dedupVideo(list []RenditionFormat) []RenditionFormat {
	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, r := range list {
		key := fmt.Sprintf("%s/%d", r.Quality, int(math.Round(r.FPS)))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
