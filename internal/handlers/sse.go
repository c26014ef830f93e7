package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/services"
  "github.com/voxnote/voxnote-backend/internal/sse"
)

type SSEHandler struct {
  log *logger.Logger
  hub *sse.Hub
}

func NewSSEHandler(log *logger.Logger, hub *sse.Hub) *SSEHandler {
  return &SSEHandler{
    log: log.With("handler", "SSEHandler"),
    hub: hub,
  }
}

// Stream subscribes the caller to their user channel and serves the event
// stream until the connection drops.
func (sh *SSEHandler) Stream(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }

  client := sh.hub.NewClient(userID)
  sh.hub.AddChannel(client, services.UserChannel(userID))
  sh.log.Info("SSE stream open", "userID", userID, "clientID", client.ID)

  sh.hub.ServeHTTP(c.Writer, c.Request, client)

  sh.hub.CloseClient(client)
  sh.log.Info("SSE stream closed", "userID", userID, "clientID", client.ID)
}
