package service

import (
	"errors"
	"testing"

	"biolink/internal/model"
)

func storedProfile() *model.Profile {
	return &model.Profile{
		OwnerID:       "u1",
		DisplayName:   "Alice",
		JoinDate:      "2024-01-01",
		Location:      model.StringPtr("Cairo"),
		ShareableSlug: model.StringPtr("alice"),
		SocialLinks:   model.SocialLinks{"discord": "d", "github": "g"},
	}
}

func mustParse(t *testing.T, body string) *model.ProfilePatch {
	t.Helper()
	p, err := model.ParsePatch([]byte(body))
	if err != nil {
		t.Fatalf("ParsePatch(%s): %v", body, err)
	}
	return p
}

func assigned(t *testing.T, u model.ProfileUpdate, col string) any {
	t.Helper()
	v, ok := u.Lookup(col)
	if !ok {
		t.Fatalf("column %s not assigned; got %+v", col, u.Set)
	}
	return v
}

func TestMerge_PartialUpdateTouchesOnlyPatchedFields(t *testing.T) {
	u, err := Merge(storedProfile(), mustParse(t, `{"mood":"Happy"}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if len(u.Set) != 1 {
		t.Fatalf("expected one assignment, got %+v", u.Set)
	}
	if got := derefAny(assigned(t, u, model.ColMood)); got != "Happy" {
		t.Errorf("mood = %q, want Happy", got)
	}
	if _, ok := u.Lookup(model.ColLocation); ok {
		t.Error("location must not be touched")
	}
}

func TestMerge_SocialLinksAreReplacedAndFiltered(t *testing.T) {
	tests := []struct {
		name string
		body string
		want model.SocialLinks
	}{
		{
			name: "full replacement",
			body: `{"socialLinks":{"discord":"d2"}}`,
			want: model.SocialLinks{"discord": "d2"},
		},
		{
			name: "blank entries dropped",
			body: `{"socialLinks":{"instagram":"","github":"https://github.com/x"}}`,
			want: model.SocialLinks{"github": "https://github.com/x"},
		},
		{
			name: "whitespace and null entries dropped",
			body: `{"socialLinks":{"youtube":"   ","tiktok":null}}`,
			want: model.SocialLinks{},
		},
		{
			name: "null clears the set",
			body: `{"socialLinks":null}`,
			want: model.SocialLinks{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Merge(storedProfile(), mustParse(t, tt.body))
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			got, ok := assigned(t, u, model.ColSocialLinks).(model.SocialLinks)
			if !ok {
				t.Fatalf("social links value has wrong type")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("links = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("links[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestMerge_RejectsUnknownPlatform(t *testing.T) {
	_, err := Merge(storedProfile(), mustParse(t, `{"socialLinks":{"myspace":"https://myspace.com/x"}}`))
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f := model.ErrorField(err); f != "socialLinks.myspace" {
		t.Errorf("field = %q", f)
	}
}

func TestMerge_EmptyStringClearsToDefault(t *testing.T) {
	u, err := Merge(storedProfile(), mustParse(t, `{"location":"","statusText":null}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if v := assigned(t, u, model.ColLocation).(*string); v != nil {
		t.Errorf("location should be cleared, got %q", *v)
	}
	if v := assigned(t, u, model.ColStatusText).(*string); v != nil {
		t.Errorf("statusText should be cleared, got %q", *v)
	}
}

func TestMerge_IgnoresUnknownKeys(t *testing.T) {
	u, err := Merge(storedProfile(), mustParse(t, `{"isAdmin":true,"viewCount":999,"createdAt":"x"}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(u.Set) != 0 {
		t.Errorf("expected no assignments, got %+v", u.Set)
	}
}

func TestMerge_OwnerID(t *testing.T) {
	if _, err := Merge(storedProfile(), mustParse(t, `{"ownerId":"u1"}`)); err != nil {
		t.Errorf("same owner id should be accepted: %v", err)
	}
	_, err := Merge(storedProfile(), mustParse(t, `{"ownerId":"u2"}`))
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("changing ownerId should fail validation, got %v", err)
	}
}

func TestMerge_Slug(t *testing.T) {
	u, err := Merge(storedProfile(), mustParse(t, `{"shareableSlug":"ALICE"}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, ok := u.Lookup(model.ColShareableSlug); ok {
		t.Error("unchanged slug should not be written")
	}

	u, err = Merge(storedProfile(), mustParse(t, `{"shareableSlug":"cool"}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := derefAny(assigned(t, u, model.ColShareableSlug)); got != "cool" {
		t.Errorf("slug = %q", got)
	}

	u, err = Merge(storedProfile(), mustParse(t, `{"shareableSlug":""}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if v := assigned(t, u, model.ColShareableSlug).(*string); v != nil {
		t.Errorf("empty slug should clear, got %q", *v)
	}

	if _, err := Merge(storedProfile(), mustParse(t, `{"shareableSlug":"no spaces"}`)); !errors.Is(err, model.ErrValidation) {
		t.Errorf("invalid slug should fail validation, got %v", err)
	}
}

func TestMerge_BackgroundCoupling(t *testing.T) {
	tests := []struct {
		name        string
		storedRef   *string
		body        string
		wantErr     error
		wantGuarded bool
	}{
		{
			name:    "image without any ref",
			body:    `{"backgroundKind":"image"}`,
			wantErr: model.ErrInvalidState,
		},
		{
			name:        "image with stored ref",
			storedRef:   model.StringPtr("https://cdn.example/bg.png"),
			body:        `{"backgroundKind":"image"}`,
			wantGuarded: true,
		},
		{
			name: "video with ref in the same patch",
			body: `{"backgroundKind":"video","backgroundRef":"https://cdn.example/bg.mp4"}`,
		},
		{
			name:      "clearing ref while asking for video",
			storedRef: model.StringPtr("https://cdn.example/bg.mp4"),
			body:      `{"backgroundKind":"video","backgroundRef":""}`,
			wantErr:   model.ErrInvalidState,
		},
		{
			name: "particles needs no ref",
			body: `{"backgroundKind":"particles"}`,
		},
		{
			name:    "unknown kind",
			body:    `{"backgroundKind":"lava"}`,
			wantErr: model.ErrValidation,
		},
		{
			name: "legacy custom alias",
			body: `{"backgroundKind":"custom","backgroundRef":"https://cdn.example/bg.png"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := storedProfile()
			p.BackgroundRef = tt.storedRef

			u, err := Merge(p, mustParse(t, tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if u.RequireBackgroundRef != tt.wantGuarded {
				t.Errorf("RequireBackgroundRef = %v, want %v", u.RequireBackgroundRef, tt.wantGuarded)
			}
		})
	}
}

func TestMerge_ClearingRefUnderStoredVideoFails(t *testing.T) {
	p := storedProfile()
	p.BackgroundKind = model.StringPtr(model.BackgroundVideo)
	p.BackgroundRef = model.StringPtr("https://cdn.example/bg.mp4")

	_, err := Merge(p, mustParse(t, `{"backgroundRef":""}`))
	if !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if f := model.ErrorField(err); f != "backgroundKind,backgroundRef" {
		t.Errorf("fields = %q", f)
	}
}

func TestMerge_Validation(t *testing.T) {
	long := make([]byte, model.MaxDisplayNameLen+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty display name", `{"displayName":"  "}`, "displayName"},
		{"long display name", `{"displayName":"` + string(long) + `"}`, "displayName"},
		{"bad avatar url", `{"avatarRef":"javascript:alert(1)"}`, "avatarRef"},
		{"bad audio url", `{"audioRef":"ftp://x/y.mp3"}`, "audioRef"},
		{"bad color", `{"nameColor":"red"}`, "nameColor"},
		{"empty join date", `{"joinDate":""}`, "joinDate"},
		{"wrong type", `{"mood":42}`, "mood"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := model.ParsePatch([]byte(tt.body))
			if err == nil {
				_, err = Merge(storedProfile(), patch)
			}
			if !errors.Is(err, model.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if f := model.ErrorField(err); f != tt.field {
				t.Errorf("field = %q, want %q", f, tt.field)
			}
		})
	}
}

func TestMerge_ThemeFallsBackToDefault(t *testing.T) {
	u, err := Merge(storedProfile(), mustParse(t, `{"themeId":"theme-neon"}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := derefAny(assigned(t, u, model.ColThemeID)); got != model.DefaultTheme {
		t.Errorf("theme = %q, want %q", got, model.DefaultTheme)
	}
}
