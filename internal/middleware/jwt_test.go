package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("u1", "alice", testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "alice" || claims.Subject != "u1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	expired, _ := GenerateToken("u1", "alice", testSecret, -time.Minute)
	otherSecret, _ := GenerateToken("u1", "alice", "other", time.Minute)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(testSecret))

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": otherSecret,
		"alg none":     noneAlg,
		"no user id":   noUser,
		"garbage":      "abc.def.ghi",
	}
	for name, token := range tests {
		if _, err := ParseToken(token, testSecret); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/me", mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "username": GetUsername(c)})
	})
	return r
}

func TestNewJWTAuth(t *testing.T) {
	valid, _ := GenerateToken("u1", "alice", testSecret, time.Minute)
	router := newRouter(NewJWTAuth(&JWTConfig{Secret: testSecret}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{name: "no token", setup: func(r *http.Request) {}, status: http.StatusUnauthorized},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, status: http.StatusOK},
		{name: "lowercase bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+valid) }, status: http.StatusOK},
		{name: "cookie", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: valid})
		}, status: http.StatusOK},
		{name: "bad token", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestOptionalJWTAuth(t *testing.T) {
	valid, _ := GenerateToken("u1", "alice", testSecret, time.Minute)
	router := newRouter(OptionalJWTAuth(&JWTConfig{Secret: testSecret}))

	for _, header := range []string{"", "Bearer broken"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK || w.Body.String() != `{"user_id":"","username":""}` {
			t.Errorf("anonymous %q: %d %s", header, w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Body.String() != `{"user_id":"u1","username":"alice"}` {
		t.Errorf("authenticated: %s", w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "given" || w.Header().Get(RequestIDHeader) != "given" {
		t.Errorf("request id not propagated: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Body.String()) != 36 {
		t.Errorf("generated request id = %q", w.Body.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS("*"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing allow-origin header")
	}
}
