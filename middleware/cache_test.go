package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestResponseCache_CacheGETRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cache := NewResponseCache(1 * time.Minute)
	defer cache.Stop()

	callCount := 0
	router := gin.New()
	router.Use(cache.Cache())
	router.GET("/test/:id", func(c *gin.Context) {
		callCount++
		c.JSON(200, gin.H{"id": c.Param("id"), "count": callCount})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test/a", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"a","count":1}`, w.Body.String())
	}
	assert.Equal(t, 1, callCount)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test/b", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, 2, callCount)
	assert.Equal(t, 2, cache.Len())
}

func TestResponseCache_OnlyCache200Status(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cache := NewResponseCache(1 * time.Minute)
	defer cache.Stop()

	callCount := 0
	router := gin.New()
	router.Use(cache.Cache())
	router.GET("/missing", func(c *gin.Context) {
		callCount++
		c.JSON(404, gin.H{"error": "not found"})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/missing", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	assert.Equal(t, 2, callCount)
	assert.Equal(t, 0, cache.Len())
}

func TestResponseCache_Expiration(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cache := NewResponseCache(50 * time.Millisecond)
	defer cache.Stop()

	callCount := 0
	router := gin.New()
	router.Use(cache.Cache())
	router.GET("/test", func(c *gin.Context) {
		callCount++
		c.JSON(200, gin.H{"count": callCount})
	})

	get := func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
	}
	get()
	time.Sleep(80 * time.Millisecond)
	get()
	assert.Equal(t, 2, callCount)
}
