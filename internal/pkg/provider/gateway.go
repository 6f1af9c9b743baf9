package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ManuelReschke/Walrus/internal/pkg/metrics"
)

const maxResponseBody = 4 << 20

// Request is one outbound call. Endpoint is a low-cardinality name used for metrics.
type Request struct {
	Endpoint string
	Method   string
	Path     string
	Query    url.Values
	Token    string
}

// Gateway sends authenticated REST calls to a provider API behind a rate
// limiter and a circuit breaker. Non-2xx answers become ExternalAPIError.
type Gateway struct {
	code    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func NewGateway(cfg Config, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	name := cfg.Code + "-api"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[Gateway] Circuit %s: %s -> %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// provider-side client errors (404 on official playlists, bad ids) do not trip the breaker
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			status := ExternalStatus(err)
			return status >= 400 && status < 500 && status != http.StatusTooManyRequests
		},
	})

	return &Gateway{
		code:    cfg.Code,
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		client:  httpClient,
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	}
	return 0
}

// Do performs req and decodes a JSON body into out when out is not nil.
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	start := time.Now()

	body, err := g.cb.Execute(func() ([]byte, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, ExternalAPIError(0, nil, err)
		}
		return g.send(ctx, req)
	})

	metrics.ProviderRequestDuration.WithLabelValues(g.code, req.Endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
			err = ExternalAPIError(0, map[string]any{"error": "circuit open"}, err)
		}
		metrics.ProviderRequests.WithLabelValues(g.code, req.Endpoint, result).Inc()
		return err
	}
	metrics.ProviderRequests.WithLabelValues(g.code, req.Endpoint, "ok").Inc()

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return ExternalAPIError(http.StatusOK, nil, fmt.Errorf("decode %s response: %w", req.Endpoint, err))
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, req Request) ([]byte, error) {
	u := g.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, nil)
	if err != nil {
		return nil, err
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, ExternalAPIError(0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, ExternalAPIError(resp.StatusCode, nil, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload map[string]any
		if len(body) > 0 {
			if jerr := json.Unmarshal(body, &payload); jerr != nil {
				payload = map[string]any{"raw": string(body)}
			}
		}
		return nil, ExternalAPIError(resp.StatusCode, payload,
			fmt.Errorf("%s %s failed with status %d", req.Method, req.Path, resp.StatusCode))
	}
	return body, nil
}
