package main

import (
  "context"
  "fmt"
  "os"

  "github.com/voxnote/voxnote-backend/internal/clients/redis"
  "github.com/voxnote/voxnote-backend/internal/db"
  "github.com/voxnote/voxnote-backend/internal/handlers"
  "github.com/voxnote/voxnote-backend/internal/jobs"
  "github.com/voxnote/voxnote-backend/internal/logger"
  "github.com/voxnote/voxnote-backend/internal/middleware"
  "github.com/voxnote/voxnote-backend/internal/repos"
  "github.com/voxnote/voxnote-backend/internal/server"
  "github.com/voxnote/voxnote-backend/internal/services"
  "github.com/voxnote/voxnote-backend/internal/sse"
  "github.com/voxnote/voxnote-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  meetingRepo := repos.NewMeetingRepo(thePG, log)
  scenarioRepo := repos.NewScenarioRepo(thePG, log)
  uploadBlobRepo := repos.NewUploadBlobRepo(thePG, log)
  transcriptRepo := repos.NewTranscriptRepo(thePG, log)
  artifactSetRepo := repos.NewArtifactSetRepo(thePG, log)
  llmInteractionRepo := repos.NewLLMInteractionRepo(thePG, log)
  processingErrorRepo := repos.NewProcessingErrorRepo(thePG, log)
  processingJobRepo := repos.NewProcessingJobRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewHub(log)

  // Redis
  log.Info("Setting up Redis clients from main...")
  eventBus, err := redis.NewEventBus(log)
  if err != nil {
    log.Error("Could not init EventBus", "error", err)
    os.Exit(1)
  }
  defer eventBus.Close()
  lockService, err := redis.NewMeetingLockService(log)
  if err != nil {
    log.Error("Could not init MeetingLockService", "error", err)
    os.Exit(1)
  }
  defer lockService.Close()

  ctx := context.Background()
  if err := eventBus.StartForwarder(ctx, func(m sse.Message) {
    sseHub.Broadcast(m)
  }); err != nil {
    log.Error("Could not start event forwarder", "error", err)
    os.Exit(1)
  }

  // Services
  log.Info("Setting up Services from main...")
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Error("Could not init BucketService", "error", err)
    os.Exit(1)
  }
  defer bucketService.Close()
  transcriptionService, err := services.NewTranscriptionService(log)
  if err != nil {
    log.Error("Could not init TranscriptionService", "error", err)
    os.Exit(1)
  }
  defer transcriptionService.Close()
  llmClient, err := services.NewLLMClient(log)
  if err != nil {
    log.Error("Could not init LLMClient", "error", err)
    os.Exit(1)
  }

  notifier := services.NewProcessingNotifier(log, sseHub, eventBus)
  meetingService := services.NewMeetingService(log, thePG, meetingRepo, scenarioRepo, uploadBlobRepo, llmInteractionRepo, processingJobRepo, bucketService, notifier)
  processingService := services.NewProcessingService(
    log,
    thePG,
    meetingRepo,
    uploadBlobRepo,
    transcriptRepo,
    artifactSetRepo,
    llmInteractionRepo,
    processingErrorRepo,
    processingJobRepo,
    bucketService,
    transcriptionService,
    llmClient,
    lockService,
    notifier,
  )

  // Worker
  log.Info("Setting up processing worker from main...")
  worker := jobs.NewWorker(log, processingJobRepo, meetingRepo, processingErrorRepo, processingService, notifier)
  worker.Start(ctx)

  // Handlers
  log.Info("Setting up handlers from main...")
  meetingHandler := handlers.NewMeetingHandler(meetingService, processingService)
  scenarioHandler := handlers.NewScenarioHandler(scenarioRepo)
  notificationHandler := handlers.NewNotificationHandler(processingErrorRepo)
  sseHandler := handlers.NewSSEHandler(log, sseHub)

  // Middleware
  identityMiddleware := middleware.NewIdentityMiddleware()

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    MeetingHandler:      meetingHandler,
    ScenarioHandler:     scenarioHandler,
    NotificationHandler: notificationHandler,
    SSEHandler:          sseHandler,
    IdentityMiddleware:  identityMiddleware,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
