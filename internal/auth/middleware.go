package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// RequireAuth gates a route behind a live session. The token is read from
// the Authorization header, falling back to a "token" field in a JSON
// body; the body is restored so the downstream handler can bind it again.
// On success the session's email is stored in the gin context.
func RequireAuth(service Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromHeader(c)
		if token == "" {
			token = tokenFromBody(c)
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "authentication required",
			})
			return
		}

		email, err := service.VerifySession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: ErrUnauthorized.Error(),
			})
			return
		}

		c.Set("email", email)
		c.Next()
	}
}

// GetEmail is a helper to extract the authenticated email from context
func GetEmail(c *gin.Context) (string, bool) {
	value, exists := c.Get("email")
	if !exists {
		return "", false
	}
	email, ok := value.(string)
	return email, ok
}

// tokenFromHeader extracts a bearer token from the Authorization header.
func tokenFromHeader(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// tokenFromBody peeks at a JSON request body for a "token" field, then
// rewinds the body for whoever binds it next.
func tokenFromBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	data, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	var probe struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.Token
}
