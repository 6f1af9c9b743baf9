package secretstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	box, err := New("super-secret")
	require.NoError(t, err)
	require.NotNil(t, box)

	sealed, err := box.Seal("access-token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, encPrefix))
	assert.NotContains(t, sealed, "access-token")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-token", plain)
}

func TestNilBoxIsPassthrough(t *testing.T) {
	box, err := New("")
	require.NoError(t, err)
	assert.Nil(t, box)

	sealed, err := box.Seal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	_, err = box.Open(encPrefix + "AAAA")
	assert.Error(t, err)
}

func TestRequireRejectsEmptyKeyOutsideDevelopment(t *testing.T) {
	box, err := Require("", false)
	assert.ErrorIs(t, err, ErrNoKey)
	assert.Nil(t, box)

	box, err = Require("", true)
	require.NoError(t, err)
	assert.Nil(t, box)

	box, err = Require("k", false)
	require.NoError(t, err)
	require.NotNil(t, box)
	sealed, err := box.Seal("access-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-token")
}

func TestOpenLegacyPlaintext(t *testing.T) {
	box, _ := New("k")
	plain, err := box.Open("legacy-token")
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", plain)
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	a, _ := New("key-a")
	b, _ := New("key-b")
	sealed, err := a.Seal("x")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.Error(t, err)
}
