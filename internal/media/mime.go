package media

import "strings"

var mimeExtensions = map[string]string{
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/webp":         ".webp",
	"video/mp4":          ".mp4",
	"video/3gpp":         ".3gp",
	"audio/ogg":          ".ogg",
	"audio/mpeg":         ".mp3",
	"audio/mp4":          ".m4a",
	"audio/aac":          ".aac",
	"application/pdf":    ".pdf",
	"text/plain":         ".txt",
	"application/zip":    ".zip",
	"application/msword": ".doc",
}

var kindExtensions = map[string]string{
	"image":    ".jpg",
	"video":    ".mp4",
	"audio":    ".ogg",
	"sticker":  ".webp",
	"document": ".bin",
}

// extensionFor picks a file extension from the mime type, falling back to a
// per-kind default.
func extensionFor(mimeType, kind string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	if ext, ok := kindExtensions[kind]; ok {
		return ext
	}
	return ".bin"
}
