package provider

import (
	"context"
	"net/http"

	"github.com/markbates/goth/providers/spotify"
)

// ProfileFetcher resolves the provider-side user id of a fresh token.
type ProfileFetcher interface {
	FetchUserID(ctx context.Context, res *TokenResult) (string, error)
}

// SpotifyProfile reads /me through the goth spotify provider.
type SpotifyProfile struct {
	p *spotify.Provider
}

func NewSpotifyProfile(cfg Config, httpClient *http.Client) *SpotifyProfile {
	p := spotify.New(cfg.ClientID, cfg.ClientSecret, cfg.MemberRedirectURI, cfg.Scopes...)
	p.HTTPClient = httpClient
	return &SpotifyProfile{p: p}
}

func (s *SpotifyProfile) FetchUserID(_ context.Context, res *TokenResult) (string, error) {
	user, err := s.p.FetchUser(&spotify.Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
	})
	if err != nil {
		return "", err
	}
	return user.UserID, nil
}

// noProfile is used for providers without a profile endpoint.
type noProfile struct{}

func (noProfile) FetchUserID(context.Context, *TokenResult) (string, error) {
	return "", nil
}
