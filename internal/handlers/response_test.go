package handlers

import (
  "encoding/json"
  "errors"
  "fmt"
  "net/http"
  "net/http/httptest"
  "testing"

  "github.com/gin-gonic/gin"

  "github.com/voxnote/voxnote-backend/internal/apierr"
)

func respondAndDecode(t *testing.T, err error) (int, ErrorEnvelope) {
  t.Helper()
  gin.SetMode(gin.TestMode)
  w := httptest.NewRecorder()
  c, _ := gin.CreateTestContext(w)

  RespondServiceError(c, err)

  var envelope ErrorEnvelope
  if dErr := json.Unmarshal(w.Body.Bytes(), &envelope); dErr != nil {
    t.Fatalf("response body is not an error envelope: %v", dErr)
  }
  return w.Code, envelope
}

func TestRespondServiceErrorMapsAPIErrors(t *testing.T) {
  cases := []struct {
    name       string
    err        *apierr.Error
    wantStatus int
    wantCode   string
  }{
    {
      name:       "meeting not found",
      err:        apierr.New(http.StatusNotFound, apierr.CodeMeetingNotFound, fmt.Errorf("meeting missing")),
      wantStatus: http.StatusNotFound,
      wantCode:   apierr.CodeMeetingNotFound,
    },
    {
      name:       "not in uploaded status",
      err:        apierr.New(http.StatusConflict, apierr.CodeMeetingNotInUploadedState, fmt.Errorf("already processing")),
      wantStatus: http.StatusConflict,
      wantCode:   apierr.CodeMeetingNotInUploadedState,
    },
    {
      name:       "invalid status",
      err:        apierr.New(http.StatusConflict, apierr.CodeInvalidStatus, fmt.Errorf("cannot retry a ready meeting")),
      wantStatus: http.StatusConflict,
      wantCode:   apierr.CodeInvalidStatus,
    },
    {
      name:       "upload blob not available",
      err:        apierr.New(http.StatusConflict, apierr.CodeUploadBlobNotAvailable, fmt.Errorf("blob deleted")),
      wantStatus: http.StatusConflict,
      wantCode:   apierr.CodeUploadBlobNotAvailable,
    },
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      status, envelope := respondAndDecode(t, tc.err)
      if status != tc.wantStatus {
        t.Errorf("status = %d, want %d", status, tc.wantStatus)
      }
      if envelope.Error.Code != tc.wantCode {
        t.Errorf("code = %q, want %q", envelope.Error.Code, tc.wantCode)
      }
      if envelope.Error.Message == "" {
        t.Error("message must not be empty")
      }
    })
  }
}

func TestRespondServiceErrorMapsWrappedAPIErrors(t *testing.T) {
  wrapped := fmt.Errorf("retry meeting: %w",
    apierr.New(http.StatusConflict, apierr.CodeInvalidStatus, fmt.Errorf("not failed")))
  status, envelope := respondAndDecode(t, wrapped)
  if status != http.StatusConflict {
    t.Errorf("status = %d, want %d", status, http.StatusConflict)
  }
  if envelope.Error.Code != apierr.CodeInvalidStatus {
    t.Errorf("code = %q, want %q", envelope.Error.Code, apierr.CodeInvalidStatus)
  }
}

func TestRespondServiceErrorDefaultsTo500(t *testing.T) {
  status, envelope := respondAndDecode(t, errors.New("pg connection refused"))
  if status != http.StatusInternalServerError {
    t.Errorf("status = %d, want %d", status, http.StatusInternalServerError)
  }
  if envelope.Error.Code != "" {
    t.Errorf("plain errors must carry no code, got %q", envelope.Error.Code)
  }
}
