package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jessevdk/go-flags"
	"github.com/lucasepe/codename"
	"github.com/rs/cors"

	"relaybot/clients"
	discordclient "relaybot/clients/discord"
	slackclient "relaybot/clients/slack"
	"relaybot/config"
	"relaybot/db"
	"relaybot/handlers"
	"relaybot/models"
	adminplugin "relaybot/plugins/admin"
	generalplugin "relaybot/plugins/general"
	permissionsservice "relaybot/services/permissions"
	queueservice "relaybot/services/queue"
	ratelimitservice "relaybot/services/ratelimit"
	registryservice "relaybot/services/registry"
	"relaybot/usecases/dispatch"
	"relaybot/utils"
)

type Options struct {
	Port string `long:"port" description:"Override the admin HTTP port from the environment"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if opts.Port != "" {
		cfg.Port = opts.Port
	}

	sessionName := newSessionName()
	log.Printf("🤖 Starting relaybot session %q", sessionName)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig) error {
	// One instance per state directory; the database does not tolerate two
	dirLock, err := utils.NewDirLock(cfg.StateDir)
	if err != nil {
		return err
	}
	if err := dirLock.TryLock(); err != nil {
		return err
	}
	defer dirLock.Unlock()

	conn, err := db.NewConnection(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	permissionsRepo := db.NewSQLitePermissionsRepository(conn)
	permissionsService, err := permissionsservice.NewPermissionsService(permissionsRepo, cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to initialize permissions: %w", err)
	}

	rateLimiter := ratelimitservice.NewRateLimiter(cfg.RateLimitConfig.MaxRequests, cfg.RateLimitConfig.Window)

	processingQueue := queueservice.NewProcessingQueue(queueservice.Config{
		MaxPending:  cfg.QueueConfig.MaxPending,
		Concurrency: cfg.QueueConfig.Concurrency,
		MaxRetries:  cfg.QueueConfig.MaxRetries,
	})

	commandRegistry := registryservice.NewCommandRegistry()

	transport, discordTransport, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	dispatchUseCase := dispatch.NewDispatchUseCase(
		dispatch.Config{CommandPrefix: cfg.CommandPrefix, OwnerID: cfg.OwnerID},
		commandRegistry,
		processingQueue,
		permissionsService,
		rateLimiter,
		transport,
	)
	processingQueue.SetOnDropped(dispatchUseCase.NotifyFailedCommand)

	// Builtin plugin bundles; external sources arrive later through
	// CommandRegistry.HandleSourceEvent
	if _, err := commandRegistry.Load(generalplugin.NewGeneralPlugin(processingQueue, commandRegistry)); err != nil {
		return fmt.Errorf("failed to load general plugin: %w", err)
	}
	if _, err := commandRegistry.Load(adminplugin.NewAdminPlugin(permissionsService, commandRegistry)); err != nil {
		return fmt.Errorf("failed to load admin plugin: %w", err)
	}

	if discordTransport != nil {
		if err := discordTransport.Listen(dispatchUseCase.ProcessInboundEvent); err != nil {
			return fmt.Errorf("failed to start Discord transport: %w", err)
		}
	}

	// Periodic rate-window maintenance rides the queue's background tier
	sweepTicker := time.NewTicker(time.Minute)
	sweepDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-sweepDone:
				return
			case <-sweepTicker.C:
				processingQueue.Submit(nil, func(ctx context.Context) error {
					rateLimiter.Sweep()
					return nil
				}, models.PriorityBackground)
			}
		}
	}()

	router := mux.NewRouter()
	handlers.NewAdminHTTPHandler(processingQueue, commandRegistry, permissionsService).SetupEndpoints(router)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.CORSAllowedOrigins},
		AllowedMethods: []string{"GET", "PUT", "DELETE"},
	}).Handler(router)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: corsHandler}
	go func() {
		log.Printf("✅ Admin API listening on http://localhost:%s/health", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Admin API server error: %v", err)
		}
	}()

	// Wait here until CTRL-C or other term signal is received
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	log.Printf("📋 Starting graceful shutdown")

	// Producers quiesce before the queue stops so nothing submits into a
	// stopped pool: ticker first, then the inbound transport
	sweepTicker.Stop()
	close(sweepDone)
	if discordTransport != nil {
		if err := discordTransport.Close(); err != nil {
			log.Printf("⚠️ Discord transport close error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Admin API shutdown error: %v", err)
	}

	processingQueue.Stop()

	log.Printf("✅ Shutdown complete")
	return nil
}

// buildTransport picks the configured platform. Discord also pumps inbound
// events; Slack is outbound-only here because its events arrive over the
// Events API, not the client connection.
func buildTransport(cfg *config.AppConfig) (clients.Transport, *discordclient.DiscordTransport, error) {
	if cfg.DiscordConfig.IsConfigured() {
		transport, err := discordclient.NewDiscordTransport(cfg.DiscordConfig.BotToken)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build Discord transport: %w", err)
		}
		return transport, transport, nil
	}
	if cfg.SlackConfig.IsConfigured() {
		return slackclient.NewSlackTransport(cfg.SlackConfig.BotToken), nil, nil
	}
	return nil, nil, fmt.Errorf("no transport configured: set DISCORD_BOT_TOKEN or SLACK_BOT_TOKEN")
}

func newSessionName() string {
	rng, err := codename.DefaultRNG()
	if err != nil {
		return "relaybot"
	}
	return codename.Generate(rng, 0)
}
