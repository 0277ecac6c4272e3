package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/config"
	"github.com/IgorGrieder/minimizurl/internal/constants"
	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"github.com/IgorGrieder/minimizurl/internal/transport/http/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-secret"

// stubService routes every call through an optional function field.
type stubService struct {
	createAuto      func(ctx context.Context, rawURL string, owner links.Owner) (string, error)
	createCustom    func(ctx context.Context, rawURL, customCode string, owner links.Owner) (string, error)
	resolve         func(ctx context.Context, in links.ResolveInput) (string, error)
	getStats        func(ctx context.Context, code string) (*links.Link, error)
	getForOwner     func(ctx context.Context, code string, owner links.Owner) (*links.Link, error)
	updateURL       func(ctx context.Context, code, rawURL string, owner links.Owner) (*links.Link, error)
	deleteLink      func(ctx context.Context, code string, owner links.Owner) error
	getAnalytics    func(ctx context.Context, code string, owner links.Owner) (*links.Analytics, error)
	countForOwner   func(ctx context.Context, owner links.Owner) (uint64, error)
	deleteOwnerData func(ctx context.Context, owner links.Owner) (int64, error)
}

func (s *stubService) Codec() links.Codec { return links.NewBase62() }

func (s *stubService) CreateAuto(ctx context.Context, rawURL string, owner links.Owner) (string, error) {
	return s.createAuto(ctx, rawURL, owner)
}

func (s *stubService) CreateCustom(ctx context.Context, rawURL, customCode string, owner links.Owner) (string, error) {
	return s.createCustom(ctx, rawURL, customCode, owner)
}

func (s *stubService) Resolve(ctx context.Context, in links.ResolveInput) (string, error) {
	return s.resolve(ctx, in)
}

func (s *stubService) GetStats(ctx context.Context, code string) (*links.Link, error) {
	return s.getStats(ctx, code)
}

func (s *stubService) GetForOwner(ctx context.Context, code string, owner links.Owner) (*links.Link, error) {
	return s.getForOwner(ctx, code, owner)
}

func (s *stubService) UpdateURL(ctx context.Context, code, rawURL string, owner links.Owner) (*links.Link, error) {
	return s.updateURL(ctx, code, rawURL, owner)
}

func (s *stubService) Delete(ctx context.Context, code string, owner links.Owner) error {
	return s.deleteLink(ctx, code, owner)
}

func (s *stubService) GetAnalytics(ctx context.Context, code string, owner links.Owner) (*links.Analytics, error) {
	return s.getAnalytics(ctx, code, owner)
}

func (s *stubService) CountForOwner(ctx context.Context, owner links.Owner) (uint64, error) {
	return s.countForOwner(ctx, owner)
}

func (s *stubService) DeleteOwnerData(ctx context.Context, owner links.Owner) (int64, error) {
	return s.deleteOwnerData(ctx, owner)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "minimizurl-test"
	cfg.Shortener.BaseURL = "https://mzurl.io/"
	cfg.Shortener.RedirectStatus = http.StatusFound
	cfg.Security.JWTSecret = testSecret
	cfg.Security.AllowedOrigins = []string{"*"}
	return cfg
}

func newTestRouter(svc *stubService, limiter middleware.Limiter) http.Handler {
	return NewRouterWithOptions(testConfig(), RouterDeps{
		Links:         svc,
		CreateLimiter: limiter,
		Readiness: map[string]Pinger{
			"mongo": PingFunc(func(context.Context) error { return nil }),
		},
	}, RouterOptions{})
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

type envelope struct {
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h http.Handler, method, path, body, auth string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		r.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func sampleLink() *links.Link {
	created := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	return &links.Link{
		ID:          62,
		OriginalURL: "example.com/page",
		Owner:       links.NewOwner("alice"),
		Clicks:      7,
		CreatedAt:   created,
		ExpiresAt:   created.Add(30 * 24 * time.Hour),
	}
}

func TestCreate(t *testing.T) {
	var gotOwner links.Owner
	var gotAlias string
	svc := &stubService{
		createAuto: func(_ context.Context, rawURL string, owner links.Owner) (string, error) {
			gotOwner = owner
			return "1", nil
		},
		createCustom: func(_ context.Context, rawURL, customCode string, owner links.Owner) (string, error) {
			gotOwner = owner
			gotAlias = customCode
			return customCode, nil
		},
	}
	h := newTestRouter(svc, nil)

	t.Run("generated code as guest", func(t *testing.T) {
		w, env := serve(t, h, http.MethodPost, "/api/links", `{"url":"example.com"}`, "")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, constants.CodeLinkCreated, env.Code)
		assert.True(t, gotOwner.IsGuest())

		var data createLinkResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "1", data.Code)
		assert.Equal(t, "https://mzurl.io/1", data.ShortURL)
		assert.Equal(t, "example.com", data.URL)
	})

	t.Run("custom alias as owner", func(t *testing.T) {
		w, _ := serve(t, h, http.MethodPost, "/api/links", `{"url":"https://example.com","customCode":"promo"}`, bearer(t, "alice"))
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "promo", gotAlias)
		assert.Equal(t, "alice", gotOwner.ID)
	})
}

func TestCreate_Rejections(t *testing.T) {
	svc := &stubService{
		createAuto: func(context.Context, string, links.Owner) (string, error) {
			return "", fmt.Errorf("%w: mongo insert: timeout", links.ErrStorageUnavailable)
		},
		createCustom: func(context.Context, string, string, links.Owner) (string, error) {
			return "", links.ErrConflict
		},
	}
	h := newTestRouter(svc, nil)

	tests := []struct {
		name       string
		body       string
		auth       string
		wantStatus int
		wantError  string
	}{
		{"malformed json", `{"url":`, "", http.StatusBadRequest, constants.CodeInvalidRequest},
		{"unknown field", `{"url":"example.com","notes":"x"}`, "", http.StatusBadRequest, constants.CodeInvalidRequest},
		{"missing url", `{}`, "", http.StatusBadRequest, constants.CodeInvalidURL},
		{"ftp url", `{"url":"ftp://example.com"}`, "", http.StatusBadRequest, constants.CodeInvalidURL},
		{"bad alias", `{"url":"example.com","customCode":"a!"}`, "", http.StatusBadRequest, constants.CodeInvalidCode},
		{"alias taken", `{"url":"example.com","customCode":"promo"}`, "", http.StatusConflict, constants.CodeCodeTaken},
		{"storage down", `{"url":"example.com"}`, "", http.StatusServiceUnavailable, constants.CodeStorageUnavailable},
		{"invalid token", `{"url":"example.com"}`, "Bearer nope", http.StatusUnauthorized, constants.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := serve(t, h, http.MethodPost, "/api/links", tt.body, tt.auth)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, env.Error)
		})
	}
}

func TestCreate_ReservedAliasRejected(t *testing.T) {
	stored := map[string]string{}
	svc := &stubService{
		createCustom: func(_ context.Context, rawURL, customCode string, _ links.Owner) (string, error) {
			stored[customCode] = rawURL
			return customCode, nil
		},
	}
	h := newTestRouter(svc, nil)

	for _, alias := range []string{"health", "ready", "metrics", "api"} {
		t.Run(alias, func(t *testing.T) {
			w, env := serve(t, h, http.MethodPost, "/api/links", `{"url":"example.com","customCode":"`+alias+`"}`, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, constants.CodeInvalidCode, env.Error)
			assert.NotContains(t, stored, alias)
		})
	}

	w, _ := serve(t, h, http.MethodPost, "/api/links", `{"url":"example.com","customCode":"healthy"}`, "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, stored, "healthy")
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func TestCreate_RateLimited(t *testing.T) {
	called := false
	svc := &stubService{createAuto: func(context.Context, string, links.Owner) (string, error) {
		called = true
		return "1", nil
	}}

	w, env := serve(t, newTestRouter(svc, denyAll{}), http.MethodPost, "/api/links", `{"url":"example.com"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, constants.CodeRateLimited, env.Error)
	assert.False(t, called)
}

func TestRedirect(t *testing.T) {
	var got links.ResolveInput
	svc := &stubService{resolve: func(_ context.Context, in links.ResolveInput) (string, error) {
		got = in
		switch in.Code {
		case "1":
			return "example.com/page", nil
		case "secure":
			return "HTTPS://example.com", nil
		case "plain":
			return "http://example.com", nil
		}
		return "", links.ErrNotFound
	}}
	h := newTestRouter(svc, nil)

	r := httptest.NewRequest(http.MethodGet, "/1", nil)
	r.Header.Set("Referer", "https://news.example.org")
	r.Header.Set("User-Agent", "Mozilla/5.0 (iPhone) Mobile")
	r.Header.Set("Authorization", bearer(t, "bob"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))
	assert.Equal(t, links.ResolveInput{
		Code:      "1",
		Referer:   "https://news.example.org",
		UserAgent: "Mozilla/5.0 (iPhone) Mobile",
		Visitor:   links.NewOwner("bob"),
	}, got)

	w, _ = serve(t, h, http.MethodGet, "/secure", "", "")
	assert.Equal(t, "HTTPS://example.com", w.Header().Get("Location"))

	w, _ = serve(t, h, http.MethodGet, "/plain", "", "")
	assert.Equal(t, "http://example.com", w.Header().Get("Location"))

	w, env := serve(t, h, http.MethodGet, "/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, constants.CodeLinkNotFound, env.Error)
}

func TestRedirect_PermanentStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Shortener.RedirectStatus = http.StatusMovedPermanently
	svc := &stubService{resolve: func(context.Context, links.ResolveInput) (string, error) {
		return "https://example.com", nil
	}}

	h := NewRouterWithOptions(cfg, RouterDeps{Links: svc}, RouterOptions{})
	w, _ := serve(t, h, http.MethodGet, "/abc", "", "")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
}

func TestStats(t *testing.T) {
	svc := &stubService{getStats: func(_ context.Context, code string) (*links.Link, error) {
		if code != "10" {
			return nil, links.ErrNotFound
		}
		return sampleLink(), nil
	}}
	h := newTestRouter(svc, nil)

	w, env := serve(t, h, http.MethodGet, "/api/links/10/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.CodeStatsFound, env.Code)

	var data linkResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "10", data.Code)
	assert.Equal(t, uint64(7), data.Clicks)
	assert.False(t, data.Custom)
	assert.Equal(t, "https://mzurl.io/10", data.ShortURL)
}

func TestOwnerRoutes(t *testing.T) {
	ownerOnly := func(owner links.Owner) error {
		switch {
		case owner.IsGuest(), owner.ID != "alice":
			return links.ErrForbidden
		}
		return nil
	}

	var deletedCode string
	svc := &stubService{
		getForOwner: func(_ context.Context, code string, owner links.Owner) (*links.Link, error) {
			if err := ownerOnly(owner); err != nil {
				return nil, err
			}
			link := sampleLink()
			link.CustomCode = code
			return link, nil
		},
		updateURL: func(_ context.Context, code, rawURL string, owner links.Owner) (*links.Link, error) {
			if err := ownerOnly(owner); err != nil {
				return nil, err
			}
			link := sampleLink()
			link.OriginalURL = rawURL
			return link, nil
		},
		deleteLink: func(_ context.Context, code string, owner links.Owner) error {
			if err := ownerOnly(owner); err != nil {
				return err
			}
			deletedCode = code
			return nil
		},
		getAnalytics: func(_ context.Context, code string, owner links.Owner) (*links.Analytics, error) {
			if err := ownerOnly(owner); err != nil {
				return nil, err
			}
			return &links.Analytics{Summary: links.ClickSummary{TotalClicks: 3}}, nil
		},
		countForOwner: func(_ context.Context, owner links.Owner) (uint64, error) {
			if err := ownerOnly(owner); err != nil {
				return 0, err
			}
			return 4, nil
		},
		deleteOwnerData: func(_ context.Context, owner links.Owner) (int64, error) {
			if err := ownerOnly(owner); err != nil {
				return 0, err
			}
			return 4, nil
		},
	}
	h := newTestRouter(svc, nil)
	alice := bearer(t, "alice")
	bob := bearer(t, "bob")

	t.Run("get as owner", func(t *testing.T) {
		w, env := serve(t, h, http.MethodGet, "/api/links/promo", "", alice)
		require.Equal(t, http.StatusOK, w.Code)
		var data linkResponse
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "promo", data.Code)
		assert.True(t, data.Custom)
	})

	t.Run("update as owner", func(t *testing.T) {
		w, env := serve(t, h, http.MethodPut, "/api/links/promo", `{"url":"https://new.example.com"}`, alice)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, constants.CodeLinkUpdated, env.Code)
	})

	t.Run("update with bad url", func(t *testing.T) {
		w, env := serve(t, h, http.MethodPut, "/api/links/promo", `{"url":"not a url"}`, alice)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, constants.CodeInvalidURL, env.Error)
	})

	t.Run("delete as owner", func(t *testing.T) {
		w, _ := serve(t, h, http.MethodDelete, "/api/links/promo", "", alice)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "promo", deletedCode)
	})

	t.Run("analytics as owner", func(t *testing.T) {
		w, env := serve(t, h, http.MethodGet, "/api/links/promo/analytics", "", alice)
		require.Equal(t, http.StatusOK, w.Code)
		var data links.Analytics
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, int64(3), data.Summary.TotalClicks)
	})

	t.Run("count mine", func(t *testing.T) {
		w, env := serve(t, h, http.MethodGet, "/api/me/links/count", "", alice)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"count":4}`, string(env.Data))
	})

	t.Run("delete me", func(t *testing.T) {
		w, env := serve(t, h, http.MethodDelete, "/api/me", "", alice)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deletedLinks":4}`, string(env.Data))
	})

	forbidden := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/links/promo", ""},
		{http.MethodPut, "/api/links/promo", `{"url":"example.com"}`},
		{http.MethodDelete, "/api/links/promo", ""},
		{http.MethodGet, "/api/links/promo/analytics", ""},
		{http.MethodGet, "/api/me/links/count", ""},
		{http.MethodDelete, "/api/me", ""},
	}
	for _, tt := range forbidden {
		t.Run(tt.method+" "+tt.path+" as other user", func(t *testing.T) {
			w, env := serve(t, h, tt.method, tt.path, tt.body, bob)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, constants.CodeForbidden, env.Error)
			assert.Equal(t, constants.MsgForbidden, env.Message)
		})
		t.Run(tt.method+" "+tt.path+" as guest", func(t *testing.T) {
			w, env := serve(t, h, tt.method, tt.path, tt.body, "")
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, constants.MsgLoginRequired, env.Message)
		})
	}
}

func TestAPIErrorFor(t *testing.T) {
	guest := links.Guest()
	alice := links.NewOwner("alice")

	tests := []struct {
		name   string
		err    error
		caller links.Owner
		want   constants.APIError
	}{
		{"not found", links.ErrNotFound, alice, constants.ErrLinkNotFound},
		{"forbidden owner", links.ErrForbidden, alice, constants.ErrForbidden},
		{"forbidden guest", links.ErrForbidden, guest, constants.ErrLoginRequired},
		{"conflict", links.ErrConflict, alice, constants.ErrCodeTaken},
		{"invalid code", links.ErrInvalidCode, alice, constants.ErrInvalidCode},
		{"invalid url", links.ErrInvalidURL, alice, constants.ErrInvalidURL},
		{"wrapped storage", fmt.Errorf("%w: mongo find: %w", links.ErrStorageUnavailable, errors.New("timeout")), alice, constants.ErrStorageUnavailable},
		{"unknown", errors.New("boom"), alice, constants.ErrInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apiErrorFor(tt.err, tt.caller))
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	assert.Equal(t, "https://example.com", redirectTarget("example.com"))
	assert.Equal(t, "http://example.com", redirectTarget("http://example.com"))
	assert.Equal(t, "Https://example.com", redirectTarget("Https://example.com"))
	assert.Equal(t, "https://localhost:8080/x", redirectTarget("localhost:8080/x"))
}

func TestHealthAndReady(t *testing.T) {
	h := NewRouterWithOptions(testConfig(), RouterDeps{
		Links: &stubService{},
		Readiness: map[string]Pinger{
			"mongo": PingFunc(func(context.Context) error { return nil }),
			"redis": PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
		},
	}, RouterOptions{})

	w, _ := serve(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := serve(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var data HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "degraded", data.Status)
	assert.Equal(t, map[string]string{"mongo": "ok", "redis": "unavailable"}, data.Checks)
}
