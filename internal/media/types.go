// Package media defines shared types for the download and upload actions.
package media

import (
	"net/http"
	"strings"
)

// Kind represents whether a downloaded item is a still image or a video.
type Kind int

const (
	Image Kind = iota
	Video
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// Ext returns the extension downloaded items of this kind are saved with.
func (k Kind) Ext() string {
	if k == Video {
		return ".mp4"
	}
	return ".jpg"
}

// Post is a single Instagram post resolved to one downloadable file.
type Post struct {
	Shortcode string // e.g. "CxYz123AbC"
	Caption   string // Raw caption text, may be empty
	Owner     string // Owner username
	Kind      Kind   // Image or Video
	URL       string // Direct URL to the media file
}

// imageExts maps sniffed MIME types to file suffixes.
var imageExts = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// ImageExt reports the suffix (without dot) for the image in data, or "" when
// data is not a recognised image.
func ImageExt(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if ext, ok := imageExts[ct]; ok {
		return ext
	}
	if len(data) >= 8 && (string(data[:4]) == "MM\x00*" || string(data[:4]) == "II*\x00") {
		return "tiff"
	}
	return ""
}
