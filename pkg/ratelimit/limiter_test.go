package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAllowCapsWithinWindow(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	l := New(100, time.Second).WithClock(clk.now)

	allowed, rejected := 0, 0
	for i := 0; i < 150; i++ {
		if l.Allow("u1") {
			allowed++
		} else {
			rejected++
		}
		clk.advance(time.Millisecond)
	}

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 50, rejected)
}

func TestRejectedMessagesDoNotReopenWindow(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	l := New(2, time.Second).WithClock(clk.now)

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))

	clk.advance(900 * time.Millisecond)
	assert.False(t, l.Allow("u1"))

	// Still inside the window opened by the first message.
	clk.advance(50 * time.Millisecond)
	assert.False(t, l.Allow("u1"))

	clk.advance(100 * time.Millisecond)
	assert.True(t, l.Allow("u1"))
}

func TestKeysAreIndependent(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	l := New(1, time.Second).WithClock(clk.now)

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"))
}

func TestForget(t *testing.T) {
	l := New(1, time.Hour)

	assert.True(t, l.Allow("u1"))
	assert.Equal(t, 1, l.Len())

	l.Forget("u1")
	assert.Equal(t, 0, l.Len())
	assert.True(t, l.Allow("u1"))
}

func TestExpiredKeysAreEvicted(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	l := New(5, time.Second).WithClock(clk.now)

	for i := 0; i < 1000; i++ {
		l.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	assert.Equal(t, 1000, l.Len())

	clk.advance(2 * time.Second)
	assert.True(t, l.Allow("10.9.9.9"))
	assert.Equal(t, 1, l.Len())
}

func TestLiveKeysSurvivePruning(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	l := New(1, time.Second).WithClock(clk.now)

	assert.True(t, l.Allow("old"))
	clk.advance(600 * time.Millisecond)
	assert.True(t, l.Allow("fresh"))

	// Past the old window but inside the fresh one.
	clk.advance(600 * time.Millisecond)
	assert.True(t, l.Allow("other"))
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.Allow("fresh"))
}

func TestMiddleware(t *testing.T) {
	l := New(1, time.Hour)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/rooms", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
