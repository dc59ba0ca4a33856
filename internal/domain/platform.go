package domain

import "strings"

// PlatformDescriptor describes a recognized hosting platform. It is derived
// purely from the URL text and carries the routing hints the extraction
// pipeline needs: whether the platform's yt-dlp extractor is known to be
// unstable (gets the escalating strategy list), whether the HTML fallback
// scraper can handle it, and whether it primarily hosts images.
type PlatformDescriptor struct {
	Name              string `json:"name"`
	IconKey           string `json:"icon"`
	BrandColor        string `json:"color"`
	IsImagePlatform   bool   `json:"is_image_platform"`
	UnstableExtractor bool   `json:"-"`
	SupportsFallback  bool   `json:"-"`
}

// platformEntry pairs a hostname fragment with its descriptor. The table is
// checked in order and the first match wins, so more specific fragments must
// come before generic ones.
type platformEntry struct {
	match string
	desc  PlatformDescriptor
}

var platformTable = []platformEntry{
	{"tiktok.com", PlatformDescriptor{
		Name:              "TikTok",
		IconKey:           "tiktok",
		BrandColor:        "#fe2c55",
		UnstableExtractor: true,
		SupportsFallback:  true,
	}},
	{"youtube.com", PlatformDescriptor{Name: "YouTube", IconKey: "youtube", BrandColor: "#ff0000"}},
	{"youtu.be", PlatformDescriptor{Name: "YouTube", IconKey: "youtube", BrandColor: "#ff0000"}},
	{"instagram.com", PlatformDescriptor{
		Name:            "Instagram",
		IconKey:         "instagram",
		BrandColor:      "#e1306c",
		IsImagePlatform: true,
	}},
	{"twitter.com", PlatformDescriptor{Name: "X", IconKey: "x", BrandColor: "#000000"}},
	{"x.com", PlatformDescriptor{Name: "X", IconKey: "x", BrandColor: "#000000"}},
	{"facebook.com", PlatformDescriptor{Name: "Facebook", IconKey: "facebook", BrandColor: "#1877f2"}},
	{"fb.watch", PlatformDescriptor{Name: "Facebook", IconKey: "facebook", BrandColor: "#1877f2"}},
	{"vimeo.com", PlatformDescriptor{Name: "Vimeo", IconKey: "vimeo", BrandColor: "#1ab7ea"}},
	{"reddit.com", PlatformDescriptor{Name: "Reddit", IconKey: "reddit", BrandColor: "#ff4500"}},
	{"twitch.tv", PlatformDescriptor{Name: "Twitch", IconKey: "twitch", BrandColor: "#9146ff"}},
	{"dailymotion.com", PlatformDescriptor{Name: "Dailymotion", IconKey: "dailymotion", BrandColor: "#00aaff"}},
	{"pinterest.com", PlatformDescriptor{
		Name:            "Pinterest",
		IconKey:         "pinterest",
		BrandColor:      "#e60023",
		IsImagePlatform: true,
	}},
	{"soundcloud.com", PlatformDescriptor{Name: "SoundCloud", IconKey: "soundcloud", BrandColor: "#ff5500"}},
}

// genericPlatform is returned for URLs that match no table entry. yt-dlp
// supports far more sites than the table lists, so unknown hosts still get a
// single-strategy extraction attempt.
var genericPlatform = PlatformDescriptor{
	Name:       "Unknown",
	IconKey:    "link",
	BrandColor: "#6b7280",
}

// DetectPlatform maps a URL to its platform descriptor. It never fails; URLs
// for unlisted hosts yield the generic descriptor.
func DetectPlatform(url string) PlatformDescriptor {
	lower := strings.ToLower(url)
	for _, entry := range platformTable {
		if strings.Contains(lower, entry.match) {
			return entry.desc
		}
	}
	return genericPlatform
}
