package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/meridian-grc/meridian/internal/server"
	"github.com/meridian-grc/meridian/modules"
	"github.com/meridian-grc/meridian/modules/compliance"
	"github.com/meridian-grc/meridian/modules/compliance/infrastructure/persistence"
	"github.com/meridian-grc/meridian/pkg/application"
	"github.com/meridian-grc/meridian/pkg/blob"
	"github.com/meridian-grc/meridian/pkg/configuration"
	"github.com/meridian-grc/meridian/pkg/eventbus"
	"github.com/meridian-grc/meridian/pkg/logging"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	db, err := persistence.OpenConfigured(ctx, conf.Database)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	if err := persistence.Migrate(ctx, db, logger); err != nil {
		panic(err)
	}

	blobs, err := blob.Open(ctx, conf.Blob)
	if err != nil {
		panic(err)
	}

	app := application.New(&application.ApplicationOptions{
		DB:       db,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules(&compliance.ModuleOptions{
		Blobs:  blobs,
		Import: conf.Import,
	})...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		DB:            db,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := serverInstance.Start(runCtx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
