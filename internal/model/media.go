package model

import (
	"errors"
	"strings"
)

const (
	MaxAvatarSizeBytes = 5 * 1024 * 1024 // 5MB
	AvatarWidth        = 256
	AvatarHeight       = 256
	AvatarFolder       = "avatars"
	AvatarExt          = ".jpg"

	MaxBackgroundSizeBytes = 50 * 1024 * 1024 // 50MB, videos included
	BackgroundFolder       = "backgrounds"

	MediaCacheControl = "public, max-age=31536000" // 1 year
)

// Supported content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"

	ContentTypeMP4       = "video/mp4"
	ContentTypeWebM      = "video/webm"
	ContentTypeOgg       = "video/ogg"
	ContentTypeQuickTime = "video/quicktime"
)

// Media kinds reported by the upload service
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

var allowedImageTypes = map[string]string{
	ContentTypeJPEG: ".jpg",
	ContentTypePNG:  ".png",
	ContentTypeGIF:  ".gif",
	ContentTypeWebP: ".webp",
}

var allowedVideoTypes = map[string]string{
	ContentTypeMP4:       ".mp4",
	ContentTypeWebM:      ".webm",
	ContentTypeOgg:       ".ogv",
	ContentTypeQuickTime: ".mov",
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidMediaType = "INVALID_MEDIA_TYPE"
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidMediaType = errors.New("invalid media type")
)

// UploadResult represents the uploaded object location.
// URL is the public-facing URL, Key the object key inside the bucket.
type UploadResult struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Kind string `json:"kind"`
}

// IsAllowedImageType reports if the provided content type is a supported image
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// MediaKindOf classifies a background content type. ok is false for unsupported types.
func MediaKindOf(contentType string) (kind, ext string, ok bool) {
	if ext, found := allowedImageTypes[contentType]; found {
		return MediaKindImage, ext, true
	}
	if ext, found := allowedVideoTypes[contentType]; found {
		return MediaKindVideo, ext, true
	}
	return "", "", false
}

// NormalizeContentType strips parameters and lowercases a Content-Type header value.
func NormalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
