package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Profile is one user's public page.
// Optional display fields are nullable in storage; Materialize resolves them to their defaults.
type Profile struct {
	OwnerID         string      `db:"owner_id" json:"ownerId"`
	DisplayName     string      `db:"display_name" json:"displayName"`
	DiscordUsername *string     `db:"discord_username" json:"discordUsername"`
	StatusText      *string     `db:"status_text" json:"statusText"`
	Location        *string     `db:"location" json:"location"`
	Mood            *string     `db:"mood" json:"mood"`
	JoinDate        string      `db:"join_date" json:"joinDate"`
	AvatarRef       *string     `db:"avatar_ref" json:"avatarRef"` // nil means generated placeholder
	SocialLinks     SocialLinks `db:"social_links" json:"socialLinks"`
	ViewCount       int64       `db:"view_count" json:"viewCount"`
	ShareableSlug   *string     `db:"shareable_slug" json:"shareableSlug"`
	ThemeID         *string     `db:"theme_id" json:"themeId"`
	BackgroundKind  *string     `db:"background_kind" json:"backgroundKind"`
	BackgroundRef   *string     `db:"background_ref" json:"backgroundRef"`
	AudioRef        *string     `db:"audio_ref" json:"audioRef"`
	AudioTitle      *string     `db:"audio_title" json:"audioTitle"`
	NameStyle       *string     `db:"name_style" json:"nameStyle"`
	NameColor       *string     `db:"name_color" json:"nameColor"`
	SocialIconStyle *string     `db:"social_icon_style" json:"socialIconStyle"`
	SocialIconColor *string     `db:"social_icon_color" json:"socialIconColor"`
	IsOwnerView     bool        `db:"-" json:"isOwnerView"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updatedAt"`
}

// ProfileInit carries the values a new profile starts with.
type ProfileInit struct {
	OwnerID         string      `json:"ownerId"`
	DisplayName     string      `json:"displayName"`
	DiscordUsername *string     `json:"-"`
	JoinDate        string      `json:"joinDate"`
	AvatarRef       *string     `json:"avatarRef"`
	ShareableSlug   *string     `json:"shareableSlug"`
	SocialLinks     SocialLinks `json:"socialLinks"`
	ThemeID         *string     `json:"themeId"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.DiscordUsername = cloneString(p.DiscordUsername)
	c.StatusText = cloneString(p.StatusText)
	c.Location = cloneString(p.Location)
	c.Mood = cloneString(p.Mood)
	c.AvatarRef = cloneString(p.AvatarRef)
	c.ShareableSlug = cloneString(p.ShareableSlug)
	c.ThemeID = cloneString(p.ThemeID)
	c.BackgroundKind = cloneString(p.BackgroundKind)
	c.BackgroundRef = cloneString(p.BackgroundRef)
	c.AudioRef = cloneString(p.AudioRef)
	c.AudioTitle = cloneString(p.AudioTitle)
	c.NameStyle = cloneString(p.NameStyle)
	c.NameColor = cloneString(p.NameColor)
	c.SocialIconStyle = cloneString(p.SocialIconStyle)
	c.SocialIconColor = cloneString(p.SocialIconColor)
	c.SocialLinks = p.SocialLinks.Clone()
	return &c
}

// Materialize returns a copy with every defaulted field resolved, so all readers observe
// the same values. Unknown theme ids fall back to the default theme.
func (p *Profile) Materialize() *Profile {
	m := p.Clone()
	m.StatusText = withDefault(m.StatusText, DefaultStatusText)
	m.Location = withDefault(m.Location, DefaultLocation)
	m.Mood = withDefault(m.Mood, DefaultMood)
	m.ThemeID = StringPtr(ResolveTheme(deref(m.ThemeID)))
	m.BackgroundKind = withDefault(m.BackgroundKind, DefaultBackgroundKind)
	m.NameStyle = withDefault(m.NameStyle, DefaultNameStyle)
	m.NameColor = withDefault(m.NameColor, DefaultNameColor)
	m.SocialIconStyle = withDefault(m.SocialIconStyle, DefaultSocialIconStyle)
	m.SocialIconColor = withDefault(m.SocialIconColor, DefaultSocialIconColor)
	if m.SocialLinks == nil {
		m.SocialLinks = SocialLinks{}
	}
	return m
}

// WithViewer sets IsOwnerView for the given caller. An empty caller is anonymous.
func (p *Profile) WithViewer(callerID string) *Profile {
	p.IsOwnerView = IsOwnerView(callerID, p.OwnerID)
	return p
}

// IsOwnerView reports whether callerID owns the profile.
func IsOwnerView(callerID, ownerID string) bool {
	return callerID != "" && callerID == ownerID
}

// SocialLinks maps a platform key to a URL. Stored as a JSON text column.
type SocialLinks map[string]string

func (s SocialLinks) Clone() SocialLinks {
	if s == nil {
		return nil
	}
	out := make(SocialLinks, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer.
func (s SocialLinks) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(s))
	if err != nil {
		return nil, fmt.Errorf("encode social links: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *SocialLinks) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SocialLinks{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan social links: unsupported type %T", src)
	}

	if len(raw) == 0 {
		*s = SocialLinks{}
		return nil
	}

	out := SocialLinks{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode social links: %w", err)
	}
	*s = out
	return nil
}

func StringPtr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func withDefault(s *string, def string) *string {
	if s == nil || *s == "" {
		return StringPtr(def)
	}
	return s
}
