package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"biolink/internal/model"
)

// Merge turns a client patch into column assignments for the stored profile current.
// It never reads the store: slug ownership is checked by the caller and enforced again
// by the unique index during the write.
//
// Absent fields are left alone. An empty string on a field with a default clears it back
// to the default; on other optional fields it clears the stored value.
func Merge(current *model.Profile, patch *model.ProfilePatch) (model.ProfileUpdate, error) {
	var update model.ProfileUpdate
	if patch == nil {
		return update, nil
	}

	set := func(col string, v any) {
		update.Set = append(update.Set, model.Assignment{Column: col, Value: v})
	}

	if patch.OwnerID != nil && *patch.OwnerID != current.OwnerID {
		return update, model.NewFieldError("ownerId", "cannot be changed")
	}

	if patch.DisplayName != nil {
		v, err := cleanDisplayName(*patch.DisplayName)
		if err != nil {
			return update, err
		}
		set(model.ColDisplayName, v)
	}

	if patch.DiscordUsername != nil {
		v, err := optionalText("discordUsername", *patch.DiscordUsername, model.MaxDisplayNameLen)
		if err != nil {
			return update, err
		}
		set(model.ColDiscordUsername, v)
	}

	texts := []struct {
		field string
		col   string
		value *string
		max   int
	}{
		{"statusText", model.ColStatusText, patch.StatusText, model.MaxStatusTextLen},
		{"location", model.ColLocation, patch.Location, model.MaxLocationLen},
		{"mood", model.ColMood, patch.Mood, model.MaxMoodLen},
		{"audioTitle", model.ColAudioTitle, patch.AudioTitle, model.MaxAudioTitleLen},
		{"nameStyle", model.ColNameStyle, patch.NameStyle, model.MaxStyleLen},
		{"socialIconStyle", model.ColSocialIconStyle, patch.SocialIconStyle, model.MaxStyleLen},
	}
	for _, f := range texts {
		if f.value == nil {
			continue
		}
		v, err := optionalText(f.field, *f.value, f.max)
		if err != nil {
			return update, err
		}
		set(f.col, v)
	}

	if patch.JoinDate != nil {
		v := strings.TrimSpace(*patch.JoinDate)
		if v == "" {
			return update, model.NewFieldError("joinDate", "must not be empty")
		}
		if utf8.RuneCountInString(v) > model.MaxJoinDateLen {
			return update, model.NewFieldError("joinDate", fmt.Sprintf("must be at most %d characters", model.MaxJoinDateLen))
		}
		set(model.ColJoinDate, v)
	}

	urls := []struct {
		field string
		col   string
		value *string
	}{
		{"avatarRef", model.ColAvatarRef, patch.AvatarRef},
		{"backgroundRef", model.ColBackgroundRef, patch.BackgroundRef},
		{"audioRef", model.ColAudioRef, patch.AudioRef},
	}
	for _, f := range urls {
		if f.value == nil {
			continue
		}
		v, err := optionalURL(f.field, *f.value)
		if err != nil {
			return update, err
		}
		set(f.col, v)
	}

	colors := []struct {
		field string
		col   string
		value *string
	}{
		{"nameColor", model.ColNameColor, patch.NameColor},
		{"socialIconColor", model.ColSocialIconColor, patch.SocialIconColor},
	}
	for _, f := range colors {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v == "" {
			set(f.col, (*string)(nil))
			continue
		}
		if !model.IsHexColor(v) {
			return update, model.NewFieldError(f.field, "must be a #RRGGBB color")
		}
		set(f.col, model.StringPtr(strings.ToUpper(v)))
	}

	if patch.ThemeID != nil {
		v := strings.TrimSpace(*patch.ThemeID)
		if v == "" {
			set(model.ColThemeID, (*string)(nil))
		} else {
			// Unknown themes fall back to the default instead of failing.
			set(model.ColThemeID, model.StringPtr(model.ResolveTheme(v)))
		}
	}

	if patch.SocialLinks != nil {
		links, err := cleanSocialLinks(*patch.SocialLinks)
		if err != nil {
			return update, err
		}
		set(model.ColSocialLinks, links)
	}

	if patch.ShareableSlug != nil {
		v, err := cleanSlug(*patch.ShareableSlug)
		if err != nil {
			return update, err
		}
		if !sameString(v, current.ShareableSlug) {
			set(model.ColShareableSlug, v)
		}
	}

	if patch.BackgroundKind != nil {
		raw := strings.TrimSpace(*patch.BackgroundKind)
		if raw == "" {
			set(model.ColBackgroundKind, (*string)(nil))
		} else {
			kind, ok := model.NormalizeBackgroundKind(raw)
			if !ok {
				return update, model.NewFieldError("backgroundKind", "unknown background kind")
			}
			set(model.ColBackgroundKind, model.StringPtr(kind))
		}
	}

	if err := checkBackground(current, patch, &update); err != nil {
		return update, err
	}

	return update, nil
}

// checkBackground enforces that image and video backgrounds carry a ref.
// When the ref comes only from the stored row the write is made conditional on it,
// so a concurrent clear cannot slip in between this check and the update.
func checkBackground(current *model.Profile, patch *model.ProfilePatch, update *model.ProfileUpdate) error {
	if patch.BackgroundKind == nil && patch.BackgroundRef == nil {
		return nil
	}

	kind := ""
	if v, ok := update.Lookup(model.ColBackgroundKind); ok {
		kind = derefAny(v)
	} else if current.BackgroundKind != nil {
		kind, _ = model.NormalizeBackgroundKind(*current.BackgroundKind)
	}
	if !model.BackgroundNeedsRef(kind) {
		return nil
	}

	stateErr := &model.StateError{
		Fields: []string{"backgroundKind", "backgroundRef"},
		Reason: fmt.Sprintf("background kind %q needs a backgroundRef", kind),
	}

	if v, ok := update.Lookup(model.ColBackgroundRef); ok {
		if derefAny(v) == "" {
			return stateErr
		}
		return nil
	}

	if current.BackgroundRef == nil || *current.BackgroundRef == "" {
		return stateErr
	}
	update.RequireBackgroundRef = true
	return nil
}

func cleanDisplayName(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", model.NewFieldError("displayName", "must not be empty")
	}
	if utf8.RuneCountInString(v) > model.MaxDisplayNameLen {
		return "", model.NewFieldError("displayName", fmt.Sprintf("must be at most %d characters", model.MaxDisplayNameLen))
	}
	return v, nil
}

// optionalText trims s; an empty result clears the column.
func optionalText(field, s string, limit int) (*string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > limit {
		return nil, model.NewFieldError(field, fmt.Sprintf("must be at most %d characters", limit))
	}
	return &v, nil
}

func optionalURL(field, s string) (*string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil, nil
	}
	if !model.IsHTTPURL(v) {
		return nil, model.NewFieldError(field, "must be an http(s) URL")
	}
	return &v, nil
}

// cleanSlug lowercases s. An empty slug removes it.
func cleanSlug(s string) (*string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return nil, nil
	}
	if !model.IsValidSlug(v) {
		return nil, model.NewFieldError("shareableSlug",
			fmt.Sprintf("must be %d-%d characters of a-z, 0-9, _ or -", model.MinSlugLen, model.MaxSlugLen))
	}
	return &v, nil
}

// cleanSocialLinks builds the full replacement set. Blank values are dropped;
// unknown platforms are rejected.
func cleanSocialLinks(in model.SocialLinks) (model.SocialLinks, error) {
	out := make(model.SocialLinks, len(in))
	for key, value := range in {
		k := strings.ToLower(strings.TrimSpace(key))
		v := strings.TrimSpace(value)
		if v == "" {
			continue
		}
		if !model.IsKnownPlatform(k) {
			return nil, model.NewFieldError("socialLinks."+key, "unknown platform")
		}
		if !model.IsSafeLinkValue(v) {
			return nil, model.NewFieldError("socialLinks."+key, "must be an http(s) URL or a handle")
		}
		out[k] = v
	}
	return out, nil
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefAny(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s != nil {
			return *s
		}
	}
	return ""
}
