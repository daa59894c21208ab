package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/devpro-denny/R-25V1/internal/risk"
	"github.com/devpro-denny/R-25V1/internal/strategy"
)

type stubRisk struct {
	active bool
	info   risk.TradeInfo
	stats  risk.DailyStats
	halted bool
	reason string
}

func (s *stubRisk) CanOpenTrade(string, strategy.Signal) risk.Decision {
	return risk.Decision{Allowed: true}
}
func (s *stubRisk) RecordTradeOpen(risk.TradeInfo) error     { return nil }
func (s *stubRisk) RecordTradeClosed(risk.TradeResult) error { return nil }
func (s *stubRisk) IsTradeActive() bool                      { return s.active }
func (s *stubRisk) ActiveTradeInfo() (risk.TradeInfo, bool)  { return s.info, s.active }
func (s *stubRisk) Stats() risk.DailyStats                   { return s.stats }
func (s *stubRisk) Halted() (bool, string)                   { return s.halted, s.reason }
func (s *stubRisk) ClearHalt()                               { s.halted, s.reason = false, "" }

func signToken(t *testing.T, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestServer(rm *stubRisk) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{
		Risk:       rm,
		Stats:      rm,
		JWTSecret:  "test-secret",
		InstanceID: "test-instance",
		Strategy:   "conservative",
		StartedAt:  time.Now(),
	}
}

func TestHealthzIsOpen(t *testing.T) {
	srv := newTestServer(&stubRisk{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", w.Code)
	}
}

func TestStatusRequiresToken(t *testing.T) {
	srv := newTestServer(&stubRisk{})
	router := srv.Router()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other-secret"), want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + signToken(t, "test-secret"), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestStatusReportsLockAndDailyCounters(t *testing.T) {
	rm := &stubRisk{
		active: true,
		info:   risk.TradeInfo{Symbol: "R_25", ContractID: "42", OpenedAt: time.Now()},
		stats:  risk.DailyStats{Date: "2026-08-31", Trades: 5, PnL: 2.5, Losses: 2, ConsecutiveLosses: 1},
		halted: true,
		reason: "trade lock invariant violated",
	}
	srv := newTestServer(rm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret"))
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["trade_lock_active"] != true {
		t.Fatalf("trade_lock_active = %v", body["trade_lock_active"])
	}
	if body["locked_symbol"] != "R_25" {
		t.Fatalf("locked_symbol = %v", body["locked_symbol"])
	}
	if body["halted"] != true || body["halt_reason"] == nil {
		t.Fatalf("halt fields = %v / %v", body["halted"], body["halt_reason"])
	}
	daily, ok := body["daily"].(map[string]any)
	if !ok {
		t.Fatalf("daily = %T", body["daily"])
	}
	if daily["trades"] != float64(5) || daily["consecutive_losses"] != float64(1) {
		t.Fatalf("daily = %v", daily)
	}
}

// A halted instance must be recoverable through the API, not only by a
// restart.
func TestClearHaltEndpoint(t *testing.T) {
	rm := &stubRisk{halted: true, reason: "trade lock invariant violated"}
	srv := newTestServer(rm)
	router := srv.Router()

	// The mutation is behind auth like every other /api route.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/halt/clear", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated clear = %d, want 401", w.Code)
	}
	if halted, _ := rm.Halted(); !halted {
		t.Fatal("halt cleared without a token")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/halt/clear", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret"))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("clear = %d, want 200", w.Code)
	}
	if halted, _ := rm.Halted(); halted {
		t.Fatal("halt still set after clear")
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["halted"] != false {
		t.Fatalf("halted = %v, want false", body["halted"])
	}
}

func TestTradesWithoutStoreReturnsEmptyList(t *testing.T) {
	srv := newTestServer(&stubRisk{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret"))
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("trades = %d, want 200", w.Code)
	}
	var body struct {
		Trades []any `json:"trades"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Trades) != 0 {
		t.Fatalf("trades = %v, want empty", body.Trades)
	}
}
