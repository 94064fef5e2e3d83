package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolerp/backend/internal/infrastructure/auth"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
)

// Context keys set after a token validates.
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTUsernameKey = "jwt_username"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// JWTMiddlewareConfig controls which requests must carry a token and
// what happens when one fails.
type JWTMiddlewareConfig struct {
	// JWTService validates access tokens; required.
	JWTService *auth.JWTService
	// SkipPaths and SkipPathPrefixes exempt routes from authentication
	SkipPaths        []string
	SkipPathPrefixes []string
	// OnError replaces the default 401 response when set
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// DefaultJWTConfig exempts only the liveness and readiness probes.
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/metrics",
			"/ping",
			"/api/v1/health",
			"/api/v1/ping",
		},
	}
}

// exempt reports whether a path bypasses authentication.
func (cfg JWTMiddlewareConfig) exempt(path string) bool {
	for _, skip := range cfg.SkipPaths {
		if path == skip {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// JWTAuthMiddleware guards routes with the default exemption list.
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(jwtService))
}

// JWTAuthMiddlewareWithConfig guards routes per cfg.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.exempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		tokenString, err := bearerToken(c)
		if err != nil {
			rejectRequest(c, cfg, auth.ErrInvalidToken, err.Error())
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			rejectRequest(c, cfg, err, "Token validation failed")
			return
		}

		// The username becomes the recorded_by value on any payment this
		// request writes
		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, claims.UserID)
		c.Set(JWTUsernameKey, claims.Username)

		// Propagate the operator into the request-scoped logger
		ctx := c.Request.Context()
		ctx, _ = logger.WithUserID(ctx, logger.FromContext(ctx), claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Request authenticated",
				zap.String("user_id", claims.UserID),
				zap.String("username", claims.Username),
			)
		}

		c.Next()
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader(AuthHeaderKey)
	switch {
	case header == "":
		return "", errors.New("Missing authorization header")
	case !strings.HasPrefix(header, BearerPrefix):
		return "", errors.New("Invalid authorization header format")
	}

	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		return "", errors.New("Missing token")
	}
	return token, nil
}

// authRejections maps validation failures onto the wire code and message
// the admin console shows. Anything unmapped falls back to UNAUTHORIZED.
var authRejections = []struct {
	err     error
	code    string
	message string
}{
	{auth.ErrExpiredToken, "TOKEN_EXPIRED", "Token has expired"},
	{auth.ErrTokenNotYetValid, "TOKEN_NOT_VALID", "Token is not yet valid"},
	{auth.ErrInvalidToken, "INVALID_TOKEN", "Invalid token"},
	{auth.ErrInvalidIssuer, "INVALID_TOKEN", "Invalid token"},
	{auth.ErrMissingUserID, "INVALID_TOKEN", "Token is missing required claims"},
	{auth.ErrMissingUsername, "INVALID_TOKEN", "Token is missing required claims"},
	{auth.ErrInvalidClaims, "INVALID_TOKEN", "Token is missing required claims"},
}

// rejectRequest aborts with a 401, or hands off to the configured OnError.
func rejectRequest(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		return
	}

	if cfg.Logger != nil {
		cfg.Logger.Warn("Request rejected",
			zap.Error(err),
			zap.String("message", message),
			zap.String("path", c.Request.URL.Path),
		)
	}

	code, msg := "UNAUTHORIZED", "Authentication required"
	for _, rejection := range authRejections {
		if errors.Is(err, rejection.err) {
			code, msg = rejection.code, rejection.message
			break
		}
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": msg},
	})
}

// GetJWTClaims returns the validated claims, or nil before auth ran.
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTUserID returns the authenticated user id, or "".
func GetJWTUserID(c *gin.Context) string {
	return c.GetString(JWTUserIDKey)
}

// GetJWTUsername returns the authenticated username, or "".
func GetJWTUsername(c *gin.Context) string {
	return c.GetString(JWTUsernameKey)
}
