package app

import (
	"fmt"
	"image"
	"net/http"

	"videoserver/internal/config"
	"videoserver/internal/logger"
	"videoserver/internal/model"
	"videoserver/internal/repository/sqlite"
	"videoserver/internal/routes"
	"videoserver/internal/services/detect"
	"videoserver/internal/services/session"
	"videoserver/internal/services/transcode"
	"videoserver/internal/services/websocket"
)

type App struct {
	config       *config.Config
	logger       *logger.Logger
	db           *sqlite.DB
	hubService   *websocket.HubService
	orchestrator *session.Orchestrator
	repo         *sqlite.JobRepository
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	repo := sqlite.NewJobRepository(db)

	hub := websocket.NewHubService(log)
	transcoder := transcode.New(cfg.FFmpegPath, cfg.TargetLongSide, cfg.FFmpegTimeout)

	// A missing or unreadable model is a startup-visible condition, not a
	// crash: the server comes up, reports it on /api/health, and rejects
	// uploads until the file is fixed.
	var detector session.Detector
	detectionModel, modelErr := detect.Load(cfg.ModelPath, cfg.ClassNames, cfg.DetectInputSize, cfg.DetectConfidence)
	if modelErr != nil {
		log.Warning("Detection model unavailable: %v", modelErr)
	} else {
		log.Info("Detection model loaded from %s", detectionModel.Path())
		detector = modelRunner{model: detectionModel}
	}

	orch := session.NewOrchestrator(transcoder, detector, modelErr,
		session.NewStore(), repo, hubNotifier{hub}, log, cfg.TempDirectory)

	return &App{
		config:       cfg,
		logger:       log,
		db:           db,
		hubService:   hub,
		orchestrator: orch,
		repo:         repo,
	}, nil
}

func (a *App) Run() error {
	go a.hubService.Run()

	router := routes.SetupRoutes(a.orchestrator, a.repo, a.hubService, a.config, a.logger)

	a.logger.Info("Video detection server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Model: %s | FFmpeg: %s", a.config.ModelPath, a.config.FFmpegPath)

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}

func (a *App) Close() error {
	return a.db.Close()
}

// modelRunner binds the cached model handle to the detection stage.
type modelRunner struct {
	model *detect.Model
}

func (r modelRunner) Run(inputPath, outputPath string) (detect.RunStats, image.Image, error) {
	return detect.Run(inputPath, outputPath, r.model)
}

// hubNotifier adapts the websocket hub to the orchestrator's Notifier.
type hubNotifier struct {
	hub *websocket.HubService
}

func (n hubNotifier) Publish(event model.StageEvent) {
	n.hub.BroadcastJSON(event)
}
