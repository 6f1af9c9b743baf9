package provider

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/ManuelReschke/Walrus/app/models"
)

// TokenResult is a normalized token response. ExpiresIn and ExpiresAt are
// always both set.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresIn    int
	ExpiresAt    time.Time
}

// Handler runs the OAuth2 authorization-code and refresh-token exchanges of one provider.
type Handler struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

func NewHandler(cfg Config, httpClient *http.Client) *Handler {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Handler{cfg: cfg, httpClient: httpClient, now: time.Now}
}

func (h *Handler) Code() string {
	return h.cfg.Code
}

func (h *Handler) Config() Config {
	return h.cfg
}

func (h *Handler) oauthConfig(redirectURI string, scopes []string) *oauth2.Config {
	style := oauth2.AuthStyleInParams
	if h.cfg.UseBasicAuth {
		style = oauth2.AuthStyleInHeader
	}
	return &oauth2.Config{
		ClientID:     h.cfg.ClientID,
		ClientSecret: h.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   h.cfg.AuthURL,
			TokenURL:  h.cfg.TokenURL,
			AuthStyle: style,
		},
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}
}

// RedirectURI returns the callback URI registered for the owner kind.
func (h *Handler) RedirectURI(ownerKind string) string {
	if ownerKind == models.OWNER_KIND_PROXY_ACCOUNT {
		return h.cfg.ProxyRedirectURI
	}
	return h.cfg.MemberRedirectURI
}

// AuthorizeURL builds the consent URL. Empty scopes fall back to the configured ones.
func (h *Handler) AuthorizeURL(redirectURI, state string, scopes []string, showDialog bool) string {
	if len(scopes) == 0 {
		scopes = h.cfg.Scopes
	}
	var opts []oauth2.AuthCodeOption
	if showDialog {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return h.oauthConfig(redirectURI, scopes).AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens.
func (h *Handler) Exchange(ctx context.Context, code, redirectURI string) (*TokenResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, NewError(CodeExternalAuthorization, "authorization code is required", nil)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	tok, err := h.oauthConfig(redirectURI, nil).Exchange(ctx, code)
	if err != nil {
		return nil, convertOAuthError(err)
	}
	return h.normalize(tok), nil
}

// Refresh runs the refresh-token grant. When the provider omits a new
// refresh token the old one is carried over.
func (h *Handler) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("refresh token is empty")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	src := h.oauthConfig("", nil).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, convertOAuthError(err)
	}
	res := h.normalize(tok)
	if res.RefreshToken == "" {
		res.RefreshToken = refreshToken
	}
	return res, nil
}

func (h *Handler) normalize(tok *oauth2.Token) *TokenResult {
	now := h.now()
	res := &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if s, ok := tok.Extra("scope").(string); ok {
		res.Scope = s
	}

	switch {
	case !tok.Expiry.IsZero():
		res.ExpiresAt = tok.Expiry
		res.ExpiresIn = int(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
	case extraExpiresAt(tok) > 0:
		res.ExpiresAt = time.Unix(extraExpiresAt(tok), 0)
		res.ExpiresIn = int(res.ExpiresAt.Sub(now).Round(time.Second) / time.Second)
	default:
		def := h.cfg.DefaultExpiration
		if def <= 0 {
			def = 3600
		}
		res.ExpiresIn = def
		res.ExpiresAt = now.Add(time.Duration(def) * time.Second)
	}
	if res.ExpiresIn < 0 {
		res.ExpiresIn = 0
	}
	return res
}

func extraExpiresAt(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_at").(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func convertOAuthError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		var body map[string]any
		if len(re.Body) > 0 {
			if jerr := json.Unmarshal(re.Body, &body); jerr != nil {
				body = map[string]any{"raw": string(re.Body)}
			}
		}
		if body == nil && re.ErrorCode != "" {
			body = map[string]any{"error": re.ErrorCode}
		}
		return ExternalAPIError(status, body, err)
	}
	return ExternalAPIError(0, nil, err)
}
