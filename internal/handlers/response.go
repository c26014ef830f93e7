package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/voxnote/voxnote-backend/internal/apierr"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

// RespondServiceError maps *apierr.Error onto its status/code; anything else
// is a 500.
func RespondServiceError(c *gin.Context, err error) {
  var apiErr *apierr.Error
  if errors.As(err, &apiErr) {
    status := apiErr.Status
    if status == 0 {
      status = http.StatusInternalServerError
    }
    RespondError(c, status, apiErr.Code, err)
    return
  }
  RespondError(c, http.StatusInternalServerError, "", err)
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// userIDFrom reads the caller identity set by the identity middleware.
func userIDFrom(c *gin.Context) (uuid.UUID, bool) {
  raw, exists := c.Get("userID")
  if !exists {
    return uuid.Nil, false
  }
  id, ok := raw.(uuid.UUID)
  if !ok || id == uuid.Nil {
    return uuid.Nil, false
  }
  return id, true
}
