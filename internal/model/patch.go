package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProfilePatch is a partial update. A nil field is absent and leaves the stored value untouched.
// For nullable fields an empty string clears the stored value.
type ProfilePatch struct {
	OwnerID         *string
	DisplayName     *string
	StatusText      *string
	Location        *string
	Mood            *string
	JoinDate        *string
	AvatarRef       *string
	SocialLinks     *SocialLinks
	ShareableSlug   *string
	ThemeID         *string
	BackgroundKind  *string
	BackgroundRef   *string
	AudioRef        *string
	AudioTitle      *string
	NameStyle       *string
	NameColor       *string
	SocialIconStyle *string
	SocialIconColor *string

	// DiscordUsername is only written by identity sync; ParsePatch never sets it.
	DiscordUsername *string
}

// patchFields maps JSON keys onto the string fields a client may write.
func (p *ProfilePatch) patchFields() map[string]**string {
	return map[string]**string{
		"ownerId":         &p.OwnerID,
		"displayName":     &p.DisplayName,
		"statusText":      &p.StatusText,
		"location":        &p.Location,
		"mood":            &p.Mood,
		"joinDate":        &p.JoinDate,
		"avatarRef":       &p.AvatarRef,
		"shareableSlug":   &p.ShareableSlug,
		"themeId":         &p.ThemeID,
		"backgroundKind":  &p.BackgroundKind,
		"backgroundRef":   &p.BackgroundRef,
		"audioRef":        &p.AudioRef,
		"audioTitle":      &p.AudioTitle,
		"nameStyle":       &p.NameStyle,
		"nameColor":       &p.NameColor,
		"socialIconStyle": &p.SocialIconStyle,
		"socialIconColor": &p.SocialIconColor,
	}
}

var jsonNull = []byte("null")

// ParsePatch decodes a JSON object into a patch. Keys that are not profile fields are ignored
// so newer clients keep working; a known key with the wrong JSON type is a validation error.
func ParsePatch(body []byte) (*ProfilePatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewFieldError("body", "must be a JSON object")
	}

	patch := &ProfilePatch{}
	fields := patch.patchFields()

	for key, value := range raw {
		if key == "socialLinks" {
			links, err := parseSocialLinks(value)
			if err != nil {
				return nil, err
			}
			patch.SocialLinks = &links
			continue
		}

		target, ok := fields[key]
		if !ok {
			continue
		}

		if bytes.Equal(bytes.TrimSpace(value), jsonNull) {
			*target = StringPtr("")
			continue
		}

		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, NewFieldError(key, "must be a string")
		}
		*target = &s
	}

	return patch, nil
}

func parseSocialLinks(value json.RawMessage) (SocialLinks, error) {
	if bytes.Equal(bytes.TrimSpace(value), jsonNull) {
		return SocialLinks{}, nil
	}

	var entries map[string]*string
	if err := json.Unmarshal(value, &entries); err != nil {
		return nil, NewFieldError("socialLinks", "must be an object of platform to URL")
	}

	links := make(SocialLinks, len(entries))
	for k, v := range entries {
		if v == nil {
			links[k] = ""
			continue
		}
		links[k] = *v
	}
	return links, nil
}

// Profile columns writable through an update.
const (
	ColDisplayName     = "display_name"
	ColDiscordUsername = "discord_username"
	ColStatusText      = "status_text"
	ColLocation        = "location"
	ColMood            = "mood"
	ColJoinDate        = "join_date"
	ColAvatarRef       = "avatar_ref"
	ColSocialLinks     = "social_links"
	ColShareableSlug   = "shareable_slug"
	ColThemeID         = "theme_id"
	ColBackgroundKind  = "background_kind"
	ColBackgroundRef   = "background_ref"
	ColAudioRef        = "audio_ref"
	ColAudioTitle      = "audio_title"
	ColNameStyle       = "name_style"
	ColNameColor       = "name_color"
	ColSocialIconStyle = "social_icon_style"
	ColSocialIconColor = "social_icon_color"
)

var writableColumns = map[string]struct{}{
	ColDisplayName: {}, ColDiscordUsername: {}, ColStatusText: {}, ColLocation: {}, ColMood: {},
	ColJoinDate: {}, ColAvatarRef: {}, ColSocialLinks: {}, ColShareableSlug: {}, ColThemeID: {},
	ColBackgroundKind: {}, ColBackgroundRef: {}, ColAudioRef: {}, ColAudioTitle: {},
	ColNameStyle: {}, ColNameColor: {}, ColSocialIconStyle: {}, ColSocialIconColor: {},
}

// IsWritableColumn reports whether col may appear in a ProfileUpdate.
func IsWritableColumn(col string) bool {
	_, ok := writableColumns[col]
	return ok
}

// Assignment sets one column. A nil *string value writes NULL.
type Assignment struct {
	Column string
	Value  any
}

// ProfileUpdate is the validated result of a merge, applied by the store in one write.
type ProfileUpdate struct {
	Set []Assignment

	// RequireBackgroundRef makes the write conditional on the row ending up with a background ref.
	// It closes the gap between validating against a read and the write itself.
	RequireBackgroundRef bool
}

// Lookup returns the value assigned to col, if any.
func (u ProfileUpdate) Lookup(col string) (any, bool) {
	for _, a := range u.Set {
		if a.Column == col {
			return a.Value, true
		}
	}
	return nil, false
}

// Validate rejects columns outside the writable set.
func (u ProfileUpdate) Validate() error {
	for _, a := range u.Set {
		if !IsWritableColumn(a.Column) {
			return fmt.Errorf("column %q is not writable", a.Column)
		}
	}
	return nil
}
