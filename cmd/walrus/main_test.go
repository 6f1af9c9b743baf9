package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Walrus/internal/pkg/env"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/secretstore"
)

func TestTokenBoxRequiresKeyOutsideDev(t *testing.T) {
	t.Setenv("TOKEN_ENCRYPTION_KEY", "")
	t.Cleanup(func() { env.Env = nil })

	env.Env = map[string]string{"APP_ENV": "prod"}
	box, err := tokenBox()
	assert.ErrorIs(t, err, secretstore.ErrNoKey)
	assert.Nil(t, box)

	env.Env = map[string]string{"APP_ENV": "dev"}
	box, err = tokenBox()
	require.NoError(t, err)
	assert.Nil(t, box)

	env.Env = map[string]string{"APP_ENV": "prod", "TOKEN_ENCRYPTION_KEY": "k"}
	box, err = tokenBox()
	require.NoError(t, err)
	assert.NotNil(t, box)
}

func TestProviderAppsFromEnv(t *testing.T) {
	t.Cleanup(func() { env.Env = nil })
	env.Env = map[string]string{
		"SPOTIFY_CLIENT_ID":          "main",
		"SPOTIFY_CLIENT_SECRET":      "main-secret",
		"SPOTIFY_APP2_CLIENT_ID":     "app2",
		"SPOTIFY_APP2_CLIENT_SECRET": "app2-secret",
		"SPOTIFY_PROXY_APPS":         " spotify-app2, ,spotify,spotify-app2",
	}
	def, err := provider.Lookup(provider.CodeSpotify)
	require.NoError(t, err)

	apps, err := providerApps(def)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, provider.CodeSpotify, apps[0].Code)
	assert.Equal(t, "main", apps[0].ClientID)
	assert.Equal(t, "spotify-app2", apps[1].Code)
	assert.Equal(t, "app2", apps[1].ClientID)

	env.Env["SPOTIFY_PROXY_APPS"] = "spotify-app9"
	_, err = providerApps(def)
	assert.Error(t, err)
}
