package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"biolink/internal/model"
)

const discordCDN = "https://cdn.discordapp.com"

// IdentityProvider looks up a user record by the same id that owns the profile.
type IdentityProvider interface {
	GetUser(ctx context.Context, id string) (*model.Identity, error)
}

// DiscordClient reads users from the Discord REST API with a bot token.
type DiscordClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewDiscordClient(baseURL, token string) *DiscordClient {
	return &DiscordClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type discordUser struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	GlobalName    *string `json:"global_name"`
	Avatar        *string `json:"avatar"`
}

// GetUser returns ErrNotFound for an unknown id and ErrUpstreamUnavailable for any other failure.
func (c *DiscordClient) GetUser(ctx context.Context, id string) (*model.Identity, error) {
	if id == "" {
		return nil, model.ErrNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: discord: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, model.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: discord returned %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var u discordUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: decode discord user: %v", model.ErrUpstreamUnavailable, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: discord user without id", model.ErrUpstreamUnavailable)
	}

	return toIdentity(u), nil
}

func toIdentity(u discordUser) *model.Identity {
	name := u.Username
	if u.GlobalName != nil && *u.GlobalName != "" {
		name = *u.GlobalName
	}

	username := u.Username
	if u.Discriminator != "" && u.Discriminator != "0" {
		username = u.Username + "#" + u.Discriminator
	}

	return &model.Identity{
		ID:          u.ID,
		DisplayName: name,
		Username:    username,
		AvatarURL:   discordAvatarURL(u),
	}
}

// discordAvatarURL points at the uploaded avatar, or at one of the five default avatars.
func discordAvatarURL(u discordUser) string {
	if u.Avatar != nil && *u.Avatar != "" {
		return fmt.Sprintf("%s/avatars/%s/%s.png?size=512", discordCDN, u.ID, *u.Avatar)
	}
	disc, err := strconv.Atoi(u.Discriminator)
	if err != nil {
		disc = 0
	}
	return fmt.Sprintf("%s/embed/avatars/%d.png", discordCDN, disc%5)
}

// isUpstream reports whether err should be surfaced as a retryable upstream failure.
func isUpstream(err error) bool {
	return errors.Is(err, model.ErrUpstreamUnavailable)
}
