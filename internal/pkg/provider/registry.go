package provider

import (
	"fmt"

	"github.com/ManuelReschke/Walrus/app/models"
)

const CodeSpotify = "spotify"

// Definition is the compile-time description of a supported provider.
// A provider row selects its definition by code.
type Definition struct {
	Code              string
	Platform          string
	DisplayName       string
	AuthURL           string
	TokenURL          string
	APIBaseURL        string
	Scopes            []string
	UseBasicAuth      bool
	DefaultExpiration int
}

var registry = map[string]Definition{
	CodeSpotify: {
		Code:        CodeSpotify,
		Platform:    models.PLATFORM_SPOTIFY,
		DisplayName: "Spotify",
		AuthURL:     "https://accounts.spotify.com/authorize",
		TokenURL:    "https://accounts.spotify.com/api/token",
		APIBaseURL:  "https://api.spotify.com/v1",
		Scopes: []string{
			"user-read-email",
			"user-read-private",
			"user-read-recently-played",
			"user-top-read",
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		UseBasicAuth:      true,
		DefaultExpiration: 3600,
	},
}

// Lookup returns the definition registered under code.
func Lookup(code string) (Definition, error) {
	def, ok := registry[code]
	if !ok {
		return Definition{}, fmt.Errorf("unknown provider code %q", code)
	}
	return def, nil
}

// Codes lists every registered provider code.
func Codes() []string {
	out := make([]string, 0, len(registry))
	for code := range registry {
		out = append(out, code)
	}
	return out
}

// App derives the definition of another OAuth app on the same platform.
// It shares endpoints and scopes and differs only in code.
func (d Definition) App(code string) Definition {
	d.Code = code
	d.Scopes = append([]string(nil), d.Scopes...)
	return d
}

// Row builds the provider row seeded for this definition.
func (d Definition) Row() *models.Provider {
	exp := d.DefaultExpiration
	return &models.Provider{
		Code:                   d.Code,
		Platform:               d.Platform,
		Category:               "music",
		AuthType:               models.AUTH_TYPE_OAUTH2,
		DisplayName:            d.DisplayName,
		BaseURL:                d.APIBaseURL,
		AuthScopes:             d.Scopes,
		UseBasicAuth:           d.UseBasicAuth,
		DefaultTokenExpiration: &exp,
		IsActive:               true,
	}
}
