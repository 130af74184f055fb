package model

import (
	"net/url"
	"regexp"
	"strings"
)

// Field defaults shared by the read path and the merge engine.
const (
	DefaultStatusText      = "last seen unknown"
	DefaultLocation        = "Somewhere"
	DefaultMood            = "Vibing"
	DefaultTheme           = "theme-dark"
	DefaultBackgroundKind  = BackgroundParticles
	DefaultNameStyle       = "default"
	DefaultNameColor       = "#FFFFFF"
	DefaultSocialIconStyle = "default"
	DefaultSocialIconColor = "#8B5CF6"
)

// Length limits, in runes.
const (
	MaxDisplayNameLen = 64
	MaxStatusTextLen  = 128
	MaxLocationLen    = 64
	MaxMoodLen        = 64
	MaxJoinDateLen    = 32
	MaxAudioTitleLen  = 128
	MaxStyleLen       = 32
	MaxURLLen         = 2048
	MinSlugLen        = 3
	MaxSlugLen        = 32
	MaxOwnerIDLen     = 64
)

var themes = map[string]struct{}{
	"theme-dark":   {},
	"theme-blue":   {},
	"theme-purple": {},
	"theme-red":    {},
	"theme-green":  {},
	"theme-pink":   {},
}

// IsKnownTheme reports whether id names a registered theme.
func IsKnownTheme(id string) bool {
	_, ok := themes[id]
	return ok
}

// ResolveTheme returns id when it is a known theme and the default theme otherwise.
func ResolveTheme(id string) string {
	if IsKnownTheme(id) {
		return id
	}
	return DefaultTheme
}

// Background kinds.
const (
	BackgroundNone      = "none"
	BackgroundParticles = "particles"
	BackgroundMatrix    = "matrix"
	BackgroundStars     = "stars"
	BackgroundWaves     = "waves"
	BackgroundGeometric = "geometric"
	BackgroundRain      = "rain"
	BackgroundImage     = "image"
	BackgroundVideo     = "video"

	// backgroundCustom is the legacy name for an uploaded image background.
	backgroundCustom = "custom"
)

var backgroundKinds = map[string]struct{}{
	BackgroundNone:        {},
	BackgroundParticles:   {},
	BackgroundMatrix:      {},
	BackgroundStars:       {},
	BackgroundWaves:       {},
	BackgroundGeometric:   {},
	BackgroundRain:        {},
	BackgroundImage:       {},
	BackgroundVideo:       {},
	"gradient-blue":       {},
	"gradient-purple":     {},
	"gradient-sunset":     {},
	"gradient-ocean":      {},
	"gradient-luxury":     {},
	"gradient-elegant":    {},
	"gradient-deep-black": {},
}

// NormalizeBackgroundKind maps aliases onto canonical kinds and reports whether the kind is known.
func NormalizeBackgroundKind(kind string) (string, bool) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == backgroundCustom {
		kind = BackgroundImage
	}
	_, ok := backgroundKinds[kind]
	return kind, ok
}

// BackgroundNeedsRef reports whether kind renders a media URL.
func BackgroundNeedsRef(kind string) bool {
	return kind == BackgroundImage || kind == BackgroundVideo
}

var socialPlatforms = map[string]struct{}{
	"discord":   {},
	"instagram": {},
	"github":    {},
	"telegram":  {},
	"tiktok":    {},
	"spotify":   {},
	"snapchat":  {},
	"roblox":    {},
	"youtube":   {},
	"twitter":   {},
	"twitch":    {},
	"steam":     {},
}

// IsKnownPlatform reports whether key is an allowed social link platform.
func IsKnownPlatform(key string) bool {
	_, ok := socialPlatforms[key]
	return ok
}

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9_-]+$`)
	hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// IsValidSlug reports whether s can be used as a shareable slug.
func IsValidSlug(s string) bool {
	n := len(s)
	return n >= MinSlugLen && n <= MaxSlugLen && slugPattern.MatchString(s)
}

// IsHexColor reports whether s is a #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// IsHTTPURL reports whether s is an absolute http(s) URL or a root-relative path served by this site.
func IsHTTPURL(s string) bool {
	if len(s) > MaxURLLen {
		return false
	}
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsSafeLinkValue reports whether s can be stored as a social link: either an http(s) URL
// or a plain handle without a scheme. Other schemes such as javascript: are rejected.
func IsSafeLinkValue(s string) bool {
	if s == "" || len(s) > MaxURLLen || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return !strings.HasPrefix(s, "//")
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
