package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/requestdata"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newLimiterRouter(rl *RateLimiter, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/send",
		func(c *gin.Context) {
			if userID != "" {
				ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{UserID: userID})
				c.Request = c.Request.WithContext(ctx)
			}
		},
		rl.Limit("send_message"),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)
	return r
}

func send(r *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_KeysByUser(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, logger.Nop())
	alice := newLimiterRouter(rl, "alice")
	bob := newLimiterRouter(rl, "bob")

	assert.Equal(t, http.StatusCreated, send(alice, "192.0.2.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send(alice, "192.0.2.2:1000"), "a new address does not reset the user's bucket")
	assert.Equal(t, http.StatusCreated, send(bob, "192.0.2.1:1000"))
	assert.Equal(t, 2, rl.Tracked())
}

func TestRateLimiter_PrunesIdleBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(0.001, 1, logger.Nop())
	rl.now = clock.Now
	anon := newLimiterRouter(rl, "")

	for _, addr := range []string{"192.0.2.1:1", "192.0.2.2:1", "192.0.2.3:1"} {
		require.Equal(t, http.StatusCreated, send(anon, addr))
	}
	assert.Equal(t, 3, rl.Tracked())

	clock.Advance(limiterIdleTTL / 2)
	assert.Equal(t, http.StatusTooManyRequests, send(anon, "192.0.2.1:1"))

	clock.Advance(limiterIdleTTL/2 + time.Second)
	assert.Equal(t, http.StatusCreated, send(anon, "192.0.2.9:1"))
	assert.Equal(t, 2, rl.Tracked(), "only the recently seen address and the new one remain")
}
