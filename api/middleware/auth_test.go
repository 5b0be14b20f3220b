package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authRouter(apiKeys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(apiKeys))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGet(r *gin.Engine, setHeaders func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if setHeaders != nil {
		setHeaders(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingKeyRejected(t *testing.T) {
	r := authRouter([]string{"secret"})
	if w := doGet(r, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_InvalidKeyRejected(t *testing.T) {
	r := authRouter([]string{"secret"})
	w := doGet(r, func(req *http.Request) {
		req.Header.Set("X-API-Key", "wrong")
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_AcceptsBothHeaderStyles(t *testing.T) {
	r := authRouter([]string{"secret"})

	w := doGet(r, func(req *http.Request) {
		req.Header.Set("X-API-Key", "secret")
	})
	if w.Code != http.StatusOK {
		t.Errorf("X-API-Key: status = %d, want 200", w.Code)
	}

	w = doGet(r, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer secret")
	})
	if w.Code != http.StatusOK {
		t.Errorf("Bearer: status = %d, want 200", w.Code)
	}
}

func TestAuth_NoConfiguredKeysIsOpenAccess(t *testing.T) {
	r := authRouter(nil)
	if w := doGet(r, nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with no keys configured", w.Code)
	}
}
