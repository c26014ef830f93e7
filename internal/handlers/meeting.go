package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/voxnote/voxnote-backend/internal/services"
)

type MeetingHandler struct {
  meetingService    services.MeetingService
  processingService services.ProcessingService
}

func NewMeetingHandler(meetingService services.MeetingService, processingService services.ProcessingService) *MeetingHandler {
  return &MeetingHandler{
    meetingService:    meetingService,
    processingService: processingService,
  }
}

func (mh *MeetingHandler) Create(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  var req struct {
    ScenarioID string `json:"scenario_id"`
    Title      string `json:"title"`
    FileName   string `json:"file_name"`
    MimeType   string `json:"mime_type"`
    SizeBytes  int64  `json:"size_bytes"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid request body"))
    return
  }
  scenarioID, err := uuid.Parse(req.ScenarioID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid scenario_id"))
    return
  }
  out, err := mh.meetingService.CreateMeeting(c.Request.Context(), services.CreateMeetingInput{
    OwnerUserID: userID,
    ScenarioID:  scenarioID,
    Title:       req.Title,
    FileName:    req.FileName,
    MimeType:    req.MimeType,
    SizeBytes:   req.SizeBytes,
  })
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusCreated, out)
}

func (mh *MeetingHandler) Get(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  meeting, err := mh.meetingService.GetMeeting(c.Request.Context(), userID, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, meeting)
}

func (mh *MeetingHandler) List(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetings, err := mh.meetingService.ListMeetings(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"meetings": meetings})
}

func (mh *MeetingHandler) Interactions(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  interactions, err := mh.meetingService.ListInteractions(c.Request.Context(), userID, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"interactions": interactions})
}

func (mh *MeetingHandler) Job(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  job, err := mh.meetingService.GetProcessingJob(c.Request.Context(), userID, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"job": job})
}

func (mh *MeetingHandler) Delete(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  if err := mh.meetingService.DeleteMeeting(c.Request.Context(), userID, meetingID); err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}

func (mh *MeetingHandler) CompleteUpload(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  meeting, err := mh.processingService.CompleteUpload(c.Request.Context(), userID, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, meeting)
}

func (mh *MeetingHandler) Retry(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  meeting, err := mh.processingService.Retry(c.Request.Context(), userID, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, meeting)
}

func (mh *MeetingHandler) Validate(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  meeting, err := mh.meetingService.Validate(c.Request.Context(), userID, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, meeting)
}

func (mh *MeetingHandler) Reject(c *gin.Context) {
  userID, ok := userIDFrom(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  meetingID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid meeting id"))
    return
  }
  meeting, err := mh.meetingService.Reject(c.Request.Context(), userID, meetingID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, meeting)
}
