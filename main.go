package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pipehooks/internal"
	"pipehooks/pkg/orchestrator"
	"pipehooks/pkg/registry"
	"pipehooks/pkg/registry/gormstore"
	"pipehooks/pkg/registry/httpapi"
	"pipehooks/pkg/scm"
	"pipehooks/trigger"
	"pipehooks/webhook"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	specs, err := internal.CompileTriggers(config.Triggers)
	if err != nil {
		logger.Fatalf("compile triggers: %v", err)
	}

	store, err := openRegistry(config.Registry)
	if err != nil {
		logger.Fatalf("registry: %v", err)
	}
	defer store.Close()

	resolver := trigger.NewResolver(
		store,
		time.Duration(config.Enrichment.TimeoutMS)*time.Millisecond,
		internal.NewLogger("enrich"),
	)

	submitter := orchestrator.New(orchestrator.Config{
		BaseURL: config.Orchestrator.BaseURL,
		Timeout: time.Duration(config.Orchestrator.TimeoutMS) * time.Millisecond,
	})

	routerCfg := trigger.RouterConfig{
		Triggers:  specs,
		Resolver:  resolver,
		Submitter: submitter,
		Logger:    internal.NewLogger("router"),
		Strict:    config.TriggersStrict,
	}

	if config.Notifications.Enabled {
		publisher, err := internal.NewPublisher(config.Notifications)
		if err != nil {
			logger.Fatalf("notifications: %v", err)
		}
		defer publisher.Close()
		routerCfg.Notifier = internal.NewOutcomeNotifier(publisher)
	}

	reporter, err := scm.NewReporter(config.SCM, internal.NewLogger("scm"))
	if err != nil {
		logger.Fatalf("scm reporter: %v", err)
	}
	if reporter != nil {
		routerCfg.Reporter = reporter
	}

	router, err := trigger.NewRouter(routerCfg)
	if err != nil {
		logger.Fatalf("router: %v", err)
	}

	mux := http.NewServeMux()
	maxBody := config.Server.MaxBodyBytes

	if config.Providers.GitHub.Enabled {
		ghHandler, err := webhook.NewGitHubHandler(
			config.Providers.GitHub.Secret,
			router,
			internal.NewLogger("github"),
			maxBody,
		)
		if err != nil {
			logger.Fatalf("github handler: %v", err)
		}
		mux.Handle(config.Providers.GitHub.Path, ghHandler)
		logger.Printf("github webhook enabled on %s", config.Providers.GitHub.Path)
	}

	if config.Providers.GitLab.Enabled {
		glHandler, err := webhook.NewGitLabHandler(
			config.Providers.GitLab.Secret,
			router,
			internal.NewLogger("gitlab"),
			maxBody,
		)
		if err != nil {
			logger.Fatalf("gitlab handler: %v", err)
		}
		mux.Handle(config.Providers.GitLab.Path, glHandler)
		logger.Printf("gitlab webhook enabled on %s", config.Providers.GitLab.Path)
	}

	if config.Providers.Bitbucket.Enabled {
		bbHandler, err := webhook.NewBitbucketHandler(
			config.Providers.Bitbucket.Username,
			config.Providers.Bitbucket.Password,
			router,
			internal.NewLogger("bitbucket"),
			maxBody,
		)
		if err != nil {
			logger.Fatalf("bitbucket handler: %v", err)
		}
		mux.Handle(config.Providers.Bitbucket.Path, bbHandler)
		logger.Printf("bitbucket webhook enabled on %s", config.Providers.Bitbucket.Path)
	}

	if config.Providers.Gerrit.Enabled {
		grHandler := webhook.NewGerritHandler(router, internal.NewLogger("gerrit"), maxBody)
		mux.Handle(config.Providers.Gerrit.Path, grHandler)
		logger.Printf("gerrit webhook enabled on %s", config.Providers.Gerrit.Path)
	}

	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
		logger.Printf("metrics enabled on %s", config.Server.MetricsPath)
	}

	handler := internal.NewRateLimitHandler(
		mux,
		config.Server.RateLimitRPS,
		config.Server.RateLimitBurst,
		10*time.Minute,
	)

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

func openRegistry(cfg internal.RegistryConfig) (registry.Store, error) {
	switch cfg.Mode {
	case "http":
		if cfg.HTTP.BaseURL == "" {
			return nil, fmt.Errorf("registry http base_url is required")
		}
		return httpapi.New(httpapi.Config{BaseURL: cfg.HTTP.BaseURL, Token: cfg.HTTP.Token}), nil
	case "database":
		return gormstore.Open(gormstore.Config{
			Driver:      cfg.Database.Driver,
			DSN:         cfg.Database.DSN,
			AutoMigrate: cfg.Database.AutoMigrate,
		})
	default:
		return nil, fmt.Errorf("unsupported registry mode: %s", cfg.Mode)
	}
}
