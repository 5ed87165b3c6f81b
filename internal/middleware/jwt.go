package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	contextUserID   = "user_id"
	contextUsername = "username"
)

type JWTConfig struct {
	Secret string
}

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for userID valid for ttl.
func GenerateToken(userID, username, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, algorithm and expiry.
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// TokenFromRequest prefers the access-token cookie and falls back to a
// Bearer Authorization header.
func TokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func NewJWTAuth(cfg *JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized request"})
			return
		}

		claims, err := ParseToken(tokenString, cfg.Secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth identifies the caller when a valid token is present and
// lets anonymous requests through otherwise.
func OptionalJWTAuth(cfg *JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := TokenFromRequest(c); tokenString != "" {
			if claims, err := ParseToken(tokenString, cfg.Secret); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *Claims) {
	c.Set(contextUserID, claims.UserID)
	c.Set(contextUsername, claims.Username)
}

// GetUserID returns "" for anonymous requests.
func GetUserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(contextUsername)
}
