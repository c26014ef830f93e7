package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"

  "github.com/voxnote/voxnote-backend/internal/clients/redis"
  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/sse"
  "github.com/voxnote/voxnote-backend/internal/types"
)

// ProcessingNotifier pushes pipeline events to connected clients. Every method
// is fire-and-forget: failures are logged and never propagate into the
// pipeline that triggered them.
type ProcessingNotifier interface {
  MeetingStatusChanged(ctx context.Context, meeting *types.Meeting)
  ProcessingErrorRecorded(ctx context.Context, meeting *types.Meeting, perr *types.ProcessingError)
}

type processingNotifier struct {
  log *logger.Logger
  hub *sse.Hub
  bus redis.EventBus
}

func NewProcessingNotifier(baseLog *logger.Logger, hub *sse.Hub, bus redis.EventBus) ProcessingNotifier {
  return &processingNotifier{
    log: baseLog.With("service", "ProcessingNotifier"),
    hub: hub,
    bus: bus,
  }
}

// UserChannel is the SSE channel a user's clients subscribe to.
func UserChannel(userID uuid.UUID) string {
  return fmt.Sprintf("user:%s", userID)
}

func (n *processingNotifier) MeetingStatusChanged(ctx context.Context, meeting *types.Meeting) {
  if meeting == nil {
    return
  }
  msg := sse.Message{
    Channel: UserChannel(meeting.OwnerUserID),
    Event:   sse.EventMeetingStatusChanged,
    Data: map[string]any{
      "meetingId": meeting.ID,
      "status":    meeting.Status,
    },
  }
  n.publish(ctx, msg)
}

func (n *processingNotifier) ProcessingErrorRecorded(ctx context.Context, meeting *types.Meeting, perr *types.ProcessingError) {
  if meeting == nil || perr == nil {
    return
  }
  msg := sse.Message{
    Channel: UserChannel(meeting.OwnerUserID),
    Event:   sse.EventProcessingErrorRecorded,
    Data: map[string]any{
      "meetingId": meeting.ID,
      "stage":     perr.Stage,
      "errorCode": perr.ErrorCode,
      "message":   perr.Message,
    },
  }
  n.publish(ctx, msg)
}

func (n *processingNotifier) publish(ctx context.Context, msg sse.Message) {
  if n.bus != nil {
    if err := n.bus.Publish(ctx, msg); err != nil {
      n.log.Warn("Failed to publish event to redis", "event", msg.Event, "error", err)
      // fall back to local delivery so single-instance deployments still see it
      if n.hub != nil {
        n.hub.Broadcast(msg)
      }
    }
    return
  }
  if n.hub != nil {
    n.hub.Broadcast(msg)
  }
}
