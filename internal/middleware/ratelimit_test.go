package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/signbridge/internal/model"
)

func testRateLimiterConfig(generalBurst, aiBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		AIRate:          1,
		AIBurst:         aiBurst,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(userID, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req = req.WithContext(ContextWithIdentity(req.Context(), &model.Identity{UserID: userID}))
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		if w := serve(handler, requestAs("user-1", "192.0.2.1:1234")); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		serve(handler, requestAs("user-1", "192.0.2.1:1234"))
	}
	w := serve(handler, requestAs("user-1", "192.0.2.1:1234"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Error == "" {
		t.Errorf("expected {error} body, got %v / %+v", err, body)
	}
}

func TestRateLimitMiddleware_KeysByUserThenIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	// 同一IPでもユーザーが異なれば別枠
	if w := serve(handler, requestAs("user-a", "192.0.2.1:1")); w.Code != http.StatusOK {
		t.Errorf("user-a: status = %d", w.Code)
	}
	if w := serve(handler, requestAs("user-b", "192.0.2.1:1")); w.Code != http.StatusOK {
		t.Errorf("user-b: status = %d", w.Code)
	}

	// 匿名はIPで識別（ポートは無視）
	if w := serve(handler, requestAs("", "198.51.100.7:1000")); w.Code != http.StatusOK {
		t.Errorf("anonymous first: status = %d", w.Code)
	}
	if w := serve(handler, requestAs("", "198.51.100.7:2000")); w.Code != http.StatusTooManyRequests {
		t.Errorf("anonymous second: status = %d, want 429", w.Code)
	}
	if w := serve(handler, requestAs("", "198.51.100.8:1000")); w.Code != http.StatusOK {
		t.Errorf("other ip: status = %d", w.Code)
	}

	if got := rl.GeneralLimiterCount(); got != 4 {
		t.Errorf("GeneralLimiterCount = %d, want 4", got)
	}
}

func TestAIMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(10, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(rl.AIMiddleware()(okHandler()))

	if w := serve(handler, requestAs("user-1", "192.0.2.1:1")); w.Code != http.StatusOK {
		t.Fatalf("first: status = %d", w.Code)
	}
	if w := serve(handler, requestAs("user-1", "192.0.2.1:1")); w.Code != http.StatusTooManyRequests {
		t.Errorf("second: status = %d, want 429 from AI limiter", w.Code)
	}
	if rl.AILimiterCount() != 1 || rl.GeneralLimiterCount() != 1 {
		t.Errorf("limiter counts = %d/%d", rl.GeneralLimiterCount(), rl.AILimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	cfg := testRateLimiterConfig(1, 1)
	cfg.CleanupInterval = time.Millisecond
	rl := NewRateLimiter(cfg)
	rl.Stop()

	serve(rl.GeneralMiddleware()(okHandler()), requestAs("user-1", "192.0.2.1:1"))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("expected 1 entry")
	}

	time.Sleep(5 * time.Millisecond)
	rl.cleanup()

	if got := rl.GeneralLimiterCount(); got != 0 {
		t.Errorf("GeneralLimiterCount after cleanup = %d, want 0", got)
	}
}

func TestPerMinuteRateLimiterConfig(t *testing.T) {
	cfg := PerMinuteRateLimiterConfig(120, 20)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AIBurst != 20 {
		t.Errorf("ai burst = %d", cfg.AIBurst)
	}
	if DefaultRateLimiterConfig() != cfg {
		t.Error("default config should be 120/20 per minute")
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
