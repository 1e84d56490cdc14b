package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is what the lending API reads from an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and checks HS256 access tokens.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Issue mints an access token. Used by the librarian CLI and tests; the
// account service owns login.
func (t *Tokens) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenValidator is the part of Tokens the middleware needs.
type TokenValidator interface {
	Validate(tokenString string) (*Claims, error)
}

// AuthMiddleware is a Gin middleware for JWT authentication of API requests.
// The token comes from "Authorization: Bearer <token>", or from the token
// query parameter for websocket upgrades.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed authorization header")
			return
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if q := c.Query("token"); q != "" {
		return q, true
	}
	return "", false
}

// RequireRole lets the request through when the caller has any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleKey)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
	}
}

// RequireAdmin is a convenience function for requiring admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole("admin")
}

// UserID returns the authenticated caller.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// IsStaff reports whether the caller may act on other users' records.
func IsStaff(c *gin.Context) bool {
	role := c.GetString(RoleKey)
	return role == "admin" || role == "librarian"
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"code":       code,
		"statusCode": status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
