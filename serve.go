package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoapply/config"
	"autoapply/controllers"
	"autoapply/database"
	"autoapply/middleware"
	"autoapply/models"
	"autoapply/parsers"
	"autoapply/services"
	"autoapply/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP submission API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), appConfig, logger)
	},
}

// deps are the long-lived collaborators a server or batch run needs.
type deps struct {
	browser     *services.PlaywrightBrowser
	db          *sql.DB
	s3          *services.S3Service
	screenshots *services.ScreenshotService
}

func (d *deps) Close() {
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			utils.LogWarn("error stopping browser", zap.Error(err))
		}
	}
	if d.db != nil {
		d.db.Close()
	}
}

// orchestrator builds a SubmissionOrchestrator over the shared browser.
func (d *deps) orchestrator(cfg config.AppConfig, log *utils.Logger) *services.SubmissionOrchestrator {
	opts := services.OrchestratorOptions{
		StepBudget:  cfg.Browser.StepBudget,
		StepTimeout: cfg.Browser.StepTimeout,
		Logger:      log,
	}
	if d.screenshots != nil {
		opts.Screenshots = d.screenshots
	}
	return services.NewSubmissionOrchestrator(d.browser, opts)
}

// openDeps starts the browser and the optional Postgres and S3 backends.
// Optional backends that fail to start are logged and skipped.
func openDeps(ctx context.Context, cfg config.AppConfig, log *utils.Logger, withDB bool) (*deps, error) {
	d := &deps{}

	browser, err := services.NewPlaywrightBrowser(cfg.Browser, log)
	if err != nil {
		return nil, err
	}
	d.browser = browser

	if withDB && cfg.Database.Enabled() {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			log.Warn("submission history disabled", zap.Error(err))
		} else if err := database.Migrate(ctx, db); err != nil {
			log.Warn("submission history disabled", zap.Error(err))
			db.Close()
		} else {
			d.db = db
		}
	}

	if cfg.AWS.Enabled() {
		s3Service, err := services.NewS3Service(cfg.AWS, log)
		if err != nil {
			log.Warn("S3 archiving disabled", zap.Error(err))
		} else {
			d.s3 = s3Service
		}
	}
	d.screenshots = services.NewScreenshotService(d.s3, cfg.ScreenshotDir, log)
	return d, nil
}

// newRouter wires routes onto gin. It takes the controller so tests can
// inject fakes.
func newRouter(cfg config.AppConfig, ctrl *controllers.SubmissionController, shots *controllers.ScreenshotController, jwtService *services.JWTService, limiter *middleware.RateLimiter, cache *middleware.ResponseCache, log *utils.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.GET("/health", ctrl.Health)

	submit := []gin.HandlerFunc{
		middleware.RequireToken(jwtService),
		middleware.ValidateContentType("multipart/form-data"),
		middleware.MaxRequestSize(cfg.MaxUploadBytes),
	}
	if limiter != nil {
		submit = append([]gin.HandlerFunc{limiter.Limit()}, submit...)
	}
	submit = append(submit, ctrl.Submit)
	r.POST("/submit", submit...)

	api := r.Group("/api")
	api.POST("/submit", submit...)

	history := api.Group("/submissions", middleware.RequireToken(jwtService))
	history.GET("", ctrl.ListSubmissions)
	if cache != nil {
		history.GET("/:id", cache.Cache(), ctrl.GetSubmission)
	} else {
		history.GET("/:id", ctrl.GetSubmission)
	}
	history.GET("/:id/screenshot", shots.GetScreenshot)
	return r
}

func runServer(ctx context.Context, cfg config.AppConfig, log *utils.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	d, err := openDeps(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer d.Close()

	ctrl := controllers.NewSubmissionController(d.orchestrator(cfg, log), parsers.NewPDFValidator(), cfg.MaxConcurrentRuns, log)
	ctrl.AutoConsent = cfg.AutoConsent
	if d.db != nil {
		ctrl.Store = models.NewSubmissionModel(d.db)
	}
	if d.s3 != nil {
		ctrl.Archiver = d.s3
	}

	var presigner controllers.Presigner
	if d.s3 != nil {
		presigner = d.s3
	}
	shots := controllers.NewScreenshotController(presigner)

	var jwtService *services.JWTService
	if cfg.JWTSecret != "" {
		jwtService = services.NewJWTService(cfg.JWTSecret, 0)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	defer limiter.Stop()
	cache := middleware.NewResponseCache(5 * time.Minute)
	defer cache.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, ctrl, shots, jwtService, limiter, cache, log),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.Named("http").StdLog(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Bool("auth", jwtService != nil))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Browser.StepTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
