package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/Walrus/app/models"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(CodeResourceBusy, "try later", nil))
	assert.True(t, errors.Is(err, ErrResourceBusy))
	assert.False(t, errors.Is(err, ErrResourceNotAvailable))
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusOK, CodeSuccess.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, CodeResourceBusy.HTTPStatus())
	assert.Equal(t, http.StatusConflict, CodePlaylistOrderMismatch.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, CodePlaylistOrderCacheMissing.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, ResponseCode(1234).HTTPStatus())
}

func TestAccessTokenUnavailableNamesOwner(t *testing.T) {
	owner := ProxyAccountOwner{Account: &models.ProxyAccount{ID: 4}}
	err := AccessTokenUnavailable(owner, nil)
	assert.Equal(t, "proxy_account", err.Details["owner_kind"])
	assert.Equal(t, uint(4), err.Details["owner_id"])
	assert.Contains(t, err.Error(), "proxy_account 4")
}

func TestAsErrorHidesUnknownCauses(t *testing.T) {
	e := AsError(errors.New("db exploded"))
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, "internal error", e.Code.Message())
}
