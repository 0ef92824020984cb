package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type cacheEntry struct {
	status      int
	contentType string
	body        []byte
	expiresAt   time.Time
}

// ResponseCache replays successful GET responses for ttl. Stored submissions
// never change, so their lookups are safe to cache.
type ResponseCache struct {
	cache map[string]*cacheEntry
	mu    sync.RWMutex
	ttl   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewResponseCache creates a cache and starts its cleanup loop. Call Stop to
// end it.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	rc := &ResponseCache{
		cache: make(map[string]*cacheEntry),
		ttl:   ttl,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go rc.cleanup()
	return rc
}

// Cache middleware for caching responses
func (rc *ResponseCache) Cache() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		rc.mu.RLock()
		entry, exists := rc.cache[key]
		rc.mu.RUnlock()

		if exists && time.Now().Before(entry.expiresAt) {
			c.Header("X-Cache", "HIT")
			c.Data(entry.status, entry.contentType, entry.body)
			c.Abort()
			return
		}

		writer := &responseWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if writer.Status() == http.StatusOK && len(writer.body) > 0 {
			rc.mu.Lock()
			rc.cache[key] = &cacheEntry{
				status:      http.StatusOK,
				contentType: writer.Header().Get("Content-Type"),
				body:        writer.body,
				expiresAt:   time.Now().Add(rc.ttl),
			}
			rc.mu.Unlock()
		}
	}
}

// Len reports the number of stored entries.
func (rc *ResponseCache) Len() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.cache)
}

// Stop ends the cleanup loop.
func (rc *ResponseCache) Stop() {
	rc.stopOnce.Do(func() { close(rc.stop) })
	<-rc.done
}

// cleanup removes expired cache entries
func (rc *ResponseCache) cleanup() {
	defer close(rc.done)
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rc.stop:
			return
		case <-ticker.C:
			rc.mu.Lock()
			now := time.Now()
			for key, entry := range rc.cache {
				if now.After(entry.expiresAt) {
					delete(rc.cache, key)
				}
			}
			rc.mu.Unlock()
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}
