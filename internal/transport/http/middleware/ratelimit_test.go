package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestClientIP_IgnoresForwardedHeadersByDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "192.168.1.1", clientIP(req, false))
}

func TestClientIP_XForwardedFor_Trusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", clientIP(req, true))
}

func TestClientIP_XRealIP_Fallback_Trusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-Ip", "9.10.11.12")
	assert.Equal(t, "9.10.11.12", clientIP(req, true))
}

func TestClientIP_XForwardedFor_TakesPrecedenceOverXRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	req.Header.Set("X-Real-Ip", "2.2.2.2")
	assert.Equal(t, "1.1.1.1", clientIP(req, true))
}

func TestClientIP_RemoteAddr_Fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	assert.Equal(t, "192.168.1.1", clientIP(req, true))
}

func TestClientIP_RemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1"
	assert.Equal(t, "192.168.1.1", clientIP(req, false))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
}

func TestLimitActions_OnlyListedActions(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 1, false)
	defer rl.Close()
	h := rl.LimitActions("sendOTP")(okHandler())

	call := func(target string) string {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = "10.0.0.1:1000"
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		return rec.Body.String()
	}

	assert.JSONEq(t, `{"success":true}`, call("/?action=sendOTP&email=a@b.com"))
	assert.JSONEq(t, `{"success":false,"error":"Too many requests. Please try again later."}`, call("/?action=sendOTP&email=a@b.com"))
	assert.JSONEq(t, `{"success":true}`, call("/?action=ping"), "unlisted actions pass")
}

func TestLimit_PerClient(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 1, false)
	defer rl.Close()
	h := rl.Limit(okHandler())

	for _, addr := range []string{"1.1.1.1:1000", "2.2.2.2:1000"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String(), "addr %s", addr)
	}
}

func TestLimit_RotatingForwardedHeaderSharesBucket(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 1, false)
	defer rl.Close()
	h := rl.LimitActions("verifyOTP")(okHandler())

	passed := 0
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/?action=verifyOTP&email=a@b.com&otp=000000", nil)
		req.RemoteAddr = "10.0.0.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		h.ServeHTTP(rec, req)
		if rec.Body.String() == `{"success":true}` {
			passed++
		}
	}
	assert.Equal(t, 1, passed)
}

func TestLimit_TrustedProxyKeysOnForwardedFor(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 1, true)
	defer rl.Close()
	h := rl.Limit(okHandler())

	for _, ip := range []string{"1.1.1.1", "2.2.2.2"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.Header.Set("X-Forwarded-For", ip)
		h.ServeHTTP(rec, req)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String(), "ip %s", ip)
	}
}
