package handlers

import (
  "encoding/json"
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/voxnote/voxnote-backend/internal/repos"
  "github.com/voxnote/voxnote-backend/internal/services"
  "github.com/voxnote/voxnote-backend/internal/types"
)

type ScenarioHandler struct {
  scenarioRepo repos.ScenarioRepo
}

func NewScenarioHandler(scenarioRepo repos.ScenarioRepo) *ScenarioHandler {
  return &ScenarioHandler{scenarioRepo: scenarioRepo}
}

func (sh *ScenarioHandler) Create(c *gin.Context) {
  if _, ok := userIDFrom(c); !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  var req struct {
    Name         string          `json:"name"`
    Prompt       string          `json:"prompt"`
    Keyterms     []string        `json:"keyterms"`
    OutputSchema json.RawMessage `json:"output_schema"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid request body"))
    return
  }
  if req.Name == "" || req.Prompt == "" || len(req.OutputSchema) == 0 {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("name, prompt and output_schema are required"))
    return
  }
  // reject schemas the extraction stage could never validate against
  if _, err := services.BuildValidationSchema(datatypes.JSON(req.OutputSchema)); err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("unusable output_schema: %w", err))
    return
  }
  keyterms, err := json.Marshal(req.Keyterms)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid keyterms"))
    return
  }
  scenario := &types.Scenario{
    ID:           uuid.New(),
    Name:         req.Name,
    Prompt:       req.Prompt,
    Keyterms:     datatypes.JSON(keyterms),
    OutputSchema: datatypes.JSON(req.OutputSchema),
  }
  if _, err := sh.scenarioRepo.Create(c.Request.Context(), nil, []*types.Scenario{scenario}); err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusCreated, scenario)
}

func (sh *ScenarioHandler) Get(c *gin.Context) {
  if _, ok := userIDFrom(c); !ok {
    RespondError(c, http.StatusUnauthorized, "", fmt.Errorf("missing user identity"))
    return
  }
  scenarioID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "", fmt.Errorf("invalid scenario id"))
    return
  }
  scenario, err := sh.scenarioRepo.GetByID(c.Request.Context(), nil, scenarioID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  if scenario == nil {
    RespondError(c, http.StatusNotFound, "", fmt.Errorf("scenario not found"))
    return
  }
  RespondOK(c, scenario)
}
