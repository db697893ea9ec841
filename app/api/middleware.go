package api

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/bruinbrief/app/auth"
)

const claimsKey = "auth_claims"

// RateLimit allows Requests per Window for each client IP; zero disables it
type RateLimit struct {
	Requests int
	Window   time.Duration
}

func (l RateLimit) enabled() bool {
	return l.Requests > 0 && l.Window > 0
}

var (
	DefaultRateLimit     = RateLimit{Requests: 100, Window: 15 * time.Minute}
	DefaultAuthRateLimit = RateLimit{Requests: 5, Window: 15 * time.Minute}
)

func corsMiddleware(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// serviceAuthMiddleware admits the API access key (X-API-Key or bearer) or an admin user token
func validAPIKey(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

func serviceAuthMiddleware(apiAccessKey string, authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			providedKey = bearerToken(c)
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if apiAccessKey != "" && validAPIKey(providedKey, apiAccessKey) {
			c.Next()
			return
		}

		if authService != nil {
			if claims, err := authService.ParseToken(providedKey); err == nil {
				if !claims.IsAdmin() {
					c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
					return
				}
				c.Set(claimsKey, claims)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid API key",
			"message": "The provided API key is not valid",
		})
	}
}

// userAuthMiddleware requires a valid user token
func userAuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}

		claims, err := authService.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// optionalUserMiddleware attaches claims when a valid token is present and never rejects
func optionalUserMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := authService.ParseToken(token); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := currentClaims(c)
		if claims == nil || !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client IP
type ipLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     RateLimit
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiter(limit RateLimit) *ipLimiter {
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.limit.Window {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.limit.Window {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		every := l.limit.Window / time.Duration(l.limit.Requests)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), l.limit.Requests)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

func rateLimitMiddleware(limit RateLimit, message string) gin.HandlerFunc {
	if !limit.enabled() {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPLimiter(limit)
	retryAfter := int(math.Ceil(limit.Window.Seconds()))

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     message,
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
