package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRateLimiter(2)
	r.now = func() time.Time { return now }

	if !r.allow() || !r.allow() {
		t.Fatal("first two frames must pass")
	}
	if r.allow() {
		t.Fatal("third frame in the burst must be limited")
	}

	now = now.Add(30 * time.Second)
	if !r.allow() {
		t.Fatal("one frame must be allowed after half a minute")
	}
	if r.allow() {
		t.Fatal("refill must not exceed the rate")
	}

	now = now.Add(time.Minute)
	if !r.allow() || !r.allow() {
		t.Fatal("a full minute must restore the burst")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	for _, limit := range []int{0, -1} {
		r := newRateLimiter(limit)
		if r != nil {
			t.Fatalf("limit %d: expected disabled limiter", limit)
		}
		for range 1000 {
			if !r.allow() {
				t.Fatalf("limit %d: disabled limiter limited a frame", limit)
			}
		}
	}
}

func TestRawWriterUnwrapsGinWriter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	if w := rawWriter(c); w != rec {
		t.Fatalf("expected the underlying recorder, got %T", w)
	}
}
