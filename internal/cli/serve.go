package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"facture-workflow/internal/adapters/http/handlers"
	"facture-workflow/internal/adapters/http/middleware"
	"facture-workflow/internal/adapters/http/routes"
	"facture-workflow/internal/config"
	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the reminder scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// NewApp builds the Fiber application with middlewares and routes
func NewApp(cfg *config.Config, svc *services.Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Facture Workflow API v" + handlers.Version,
		ErrorHandler: middleware.CustomErrorHandler,
		// attachments plus multipart overhead
		BodyLimit: int(cfg.Upload.MaxBytes) + 1<<20,
	})

	middleware.Setup(app, cfg)
	routes.Setup(app, svc, cfg)

	return app
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	log := logger.Named("server")
	svc := services.NewContainer(rt.db, rt.cache, rt.cfg)

	cronService := services.NewCronService(svc.Reminders, svc.Auth, rt.cfg.Workflow.ReminderSchedule)
	if err := cronService.Start(); err != nil {
		return err
	}
	defer cronService.Stop()

	app := NewApp(rt.cfg, svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("port", rt.cfg.Port), zap.String("mode", rt.cfg.AppMode))
		return app.Listen(":" + rt.cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
