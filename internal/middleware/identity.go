package middleware

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
)

// IdentityMiddleware trusts the X-User-ID header set by the fronting
// gateway. Requests without a parseable user id never reach a handler.
type IdentityMiddleware struct{}

func NewIdentityMiddleware() *IdentityMiddleware {
  return &IdentityMiddleware{}
}

func (m *IdentityMiddleware) RequireUser() gin.HandlerFunc {
  return func(c *gin.Context) {
    raw := c.GetHeader("X-User-ID")
    if raw == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
      return
    }
    userID, err := uuid.Parse(raw)
    if err != nil || userID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid X-User-ID header"})
      return
    }
    c.Set("userID", userID)
    c.Next()
  }
}
