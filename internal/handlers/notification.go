package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/voxnote/voxnote-backend/internal/repos"
)

// NotificationHandler surfaces processing errors to the owner: the unread
// feed and per-meeting history.
type NotificationHandler struct {
  errorRepo repos.ProcessingErrorRepo
}

func NewNotificationHandler(errorRepo repos.ProcessingErrorRepo) *NotificationHandler {
  return &NotificationHandler{errorRepo: errorRepo}
}

func (nh *NotificationHandler) ListUnread(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  errs, err := nh.errorRepo.ListUnreadByOwner(c.Request.Context(), nil, userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"errors": errs})
}

func (nh *NotificationHandler) ListForMeeting(c *gin.Context) {
  if _, ok := userIDFrom(c); !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  errs, err := nh.errorRepo.ListByMeetingID(c.Request.Context(), nil, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"errors": errs})
}

func (nh *NotificationHandler) MarkRead(c *gin.Context) {
  if _, ok := userIDFrom(c); !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  errorID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid error id"))
    return
  }
  if err := nh.errorRepo.MarkRead(c.Request.Context(), nil, errorID); err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}
