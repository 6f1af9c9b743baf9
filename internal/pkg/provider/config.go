package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/Walrus/internal/pkg/env"
)

// Config carries the credentials and endpoints of one provider. It is built
// once at startup and passed to the handler.
type Config struct {
	Code              string   `validate:"required"`
	ClientID          string   `validate:"required"`
	ClientSecret      string   `validate:"required"`
	MemberRedirectURI string   `validate:"required,url"`
	ProxyRedirectURI  string   `validate:"required,url"`
	AuthURL           string   `validate:"required,url"`
	TokenURL          string   `validate:"required,url"`
	APIBaseURL        string   `validate:"required,url"`
	Scopes            []string `validate:"dive,required"`
	UseBasicAuth      bool
	DefaultExpiration int           `validate:"gte=0"`
	HTTPTimeout       time.Duration `validate:"gte=0"`
	RequestsPerSecond float64       `validate:"gte=0"`
	Burst             int           `validate:"gte=0"`

	// CallbackRedirect is where the browser lands after the member callback.
	CallbackRedirect string
}

// NewConfigFromEnv reads <CODE>_* variables and fills gaps from the registry definition.
func NewConfigFromEnv(code string) (Config, error) {
	def, err := Lookup(code)
	if err != nil {
		return Config{}, err
	}
	return ConfigFromEnv(def)
}

// EnvPrefix is the variable prefix of a provider code, "spotify-app2" reads SPOTIFY_APP2_*.
func EnvPrefix(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, "-", "_")) + "_"
}

// ConfigFromEnv builds the config of def. Callbacks default to the routes of
// the definition's platform so every app of a platform shares them.
func ConfigFromEnv(def Definition) (Config, error) {
	code := def.Code
	prefix := EnvPrefix(code)
	get := func(key, fallback string) string {
		return strings.TrimSpace(env.GetEnv(prefix+key, fallback))
	}

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	cfg := Config{
		Code:              code,
		ClientID:          get("CLIENT_ID", ""),
		ClientSecret:      get("CLIENT_SECRET", ""),
		MemberRedirectURI: get("MEMBER_REDIRECT_URI", base+"/api/v1/"+def.Platform+"/auth/member/authorize-callback"),
		ProxyRedirectURI:  get("PROXY_REDIRECT_URI", base+"/api/v1/"+def.Platform+"/auth/proxy-account/authorize-callback"),
		AuthURL:           get("AUTH_URL", def.AuthURL),
		TokenURL:          get("TOKEN_URL", def.TokenURL),
		APIBaseURL:        get("API_BASE_URL", def.APIBaseURL),
		Scopes:            def.Scopes,
		UseBasicAuth:      env.GetEnvBool(prefix+"USE_BASIC_AUTH", def.UseBasicAuth),
		DefaultExpiration: env.GetEnvInt(prefix+"DEFAULT_TOKEN_EXPIRATION", def.DefaultExpiration),
		HTTPTimeout:       env.GetEnvDuration(prefix+"HTTP_TIMEOUT", 15*time.Second),
		RequestsPerSecond: env.GetEnvFloat(prefix+"REQUESTS_PER_SECOND", 10),
		Burst:             env.GetEnvInt(prefix+"BURST", 5),
		CallbackRedirect:  get("CALLBACK_REDIRECT", base+"/"),
	}
	if raw := get("SCOPES", ""); raw != "" {
		cfg.Scopes = strings.Fields(strings.ReplaceAll(raw, ",", " "))
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid %s provider config: %w", c.Code, err)
	}
	return nil
}
