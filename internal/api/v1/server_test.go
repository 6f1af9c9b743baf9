package apiv1

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPIFile = "../../../public/docs/v1/openapi.yml"

var routeParam = regexp.MustCompile(`:([a-z_]+)`)

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIFile)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))
	return doc
}

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc := loadOpenAPI(t)
	assert.Equal(t, "Walrus API", doc.Info.Title)
	require.NotNil(t, doc.Components)
	assert.Contains(t, doc.Components.SecuritySchemes, "ApiKeyHeader")
}

func TestEveryRouteIsDocumented(t *testing.T) {
	doc := loadOpenAPI(t)

	for _, r := range routes(&APIServer{}) {
		path := routeParam.ReplaceAllString(r.path, "{$1}")
		item := doc.Paths.Find(path)
		if !assert.NotNil(t, item, "missing path %s", path) {
			continue
		}
		op := item.GetOperation(r.method)
		if !assert.NotNil(t, op, "missing %s %s", r.method, path) {
			continue
		}

		documentedPublic := op.Security != nil && len(*op.Security) == 0
		assert.Equal(t, r.access == public, documentedPublic, "security of %s %s", r.method, path)
	}
}

func TestRoutesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range routes(&APIServer{}) {
		key := r.method + " " + r.path
		assert.False(t, seen[key], "duplicate route %s", key)
		seen[key] = true
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	auth := func(c *fiber.Ctx) error {
		if c.Get("X-API-Key") == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.Next()
	}
	staff := func(c *fiber.Ctx) error {
		if c.Get("X-Staff") != "1" {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Next()
	}
	RegisterHandlers(app, NewAPIServer(nil, nil, nil), Security{Auth: auth, Staff: staff})
	return app
}

func TestRegisterHandlersAttachesSecurity(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{"ping is public", http.MethodGet, "/ping", nil, fiber.StatusOK},
		{"member route without key", http.MethodGet, "/spotify/token", nil, fiber.StatusUnauthorized},
		{"staff route without key", http.MethodGet, "/spotify/proxy-accounts", nil, fiber.StatusUnauthorized},
		{"staff route as member", http.MethodGet, "/spotify/proxy-accounts", map[string]string{"X-API-Key": "k"}, fiber.StatusForbidden},
		{"staff reassignment as member", http.MethodPut, "/spotify/proxy-accounts/proxy-1/assignment", map[string]string{"X-API-Key": "k"}, fiber.StatusForbidden},
		{"unknown route", http.MethodGet, "/spotify/unknown", nil, fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestPingAnswersPong(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ping":"pong"}`, string(body))
}
