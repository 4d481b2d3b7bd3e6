package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coursedash.app/cloud/internal/auth"
	"coursedash.app/cloud/internal/cache"
	"coursedash.app/cloud/internal/dashboard"
	"coursedash.app/cloud/internal/ratelimit"
	"coursedash.app/cloud/internal/storage"
	"coursedash.app/cloud/internal/testutil"
)

type testEnv struct {
	server   *Server
	store    *storage.MemoryStorage
	cache    *cache.Memory
	provider *testutil.FakeProvider
	mailer   *testutil.FakeMailer
}

func newTestEnv(t *testing.T, limiter ratelimit.Limiter, configure ...func(*Options)) *testEnv {
	t.Helper()

	store := storage.NewMemoryStorage()
	testutil.SetupTestData(t, store)

	env := &testEnv{
		store:    store,
		cache:    cache.NewMemory(),
		provider: &testutil.FakeProvider{},
		mailer:   &testutil.FakeMailer{},
	}
	opts := Options{
		Store:           store,
		Dashboard:       dashboard.NewService(store, env.cache, dashboard.NewMemo(16), 0),
		Payments:        env.provider,
		Mailer:          env.mailer,
		Auth:            auth.NewMiddleware(testutil.JWTSecret),
		CheckoutLimiter: limiter,
		WebhookSecret:   testutil.WebhookSecret,
		Version:         "test",
	}
	for _, fn := range configure {
		fn(&opts)
	}
	env.server = NewServer(opts)
	return env
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "healthy" || response.Version != "test" {
		t.Errorf("Unexpected health response %+v", response)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	w := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), `http_requests_total{method="GET",route="/health",status="200"}`) {
		t.Errorf("Expected request counter for /health in metrics output")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{
		"/api/v1/dashboard/enrollments",
		"/api/v1/dashboard/enrollments/" + testutil.EnrollmentID,
		"/dashboard",
	} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestRecoverer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.Router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := env.do(httptest.NewRequest(http.MethodGet, "/boom", nil))
	testutil.AssertErrorResponse(t, w, http.StatusInternalServerError, "Internal server error")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard/enrollments", nil)
	req.Header.Set("Origin", "https://learn.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	w := env.do(req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}
