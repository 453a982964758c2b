package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/onelab-hq/onelab-server/internal/apikeys"
	"github.com/onelab-hq/onelab-server/internal/auth"
	"github.com/onelab-hq/onelab-server/internal/bootstrap"
	"github.com/onelab-hq/onelab-server/internal/config"
	"github.com/onelab-hq/onelab-server/internal/credits"
	"github.com/onelab-hq/onelab-server/internal/generations"
	"github.com/onelab-hq/onelab-server/internal/generator"
	"github.com/onelab-hq/onelab-server/internal/generator/loopback"
	generatoropenai "github.com/onelab-hq/onelab-server/internal/generator/openai"
	"github.com/onelab-hq/onelab-server/internal/httpserver"
	"github.com/onelab-hq/onelab-server/internal/logging"
	"github.com/onelab-hq/onelab-server/internal/metrics"
	"github.com/onelab-hq/onelab-server/internal/ratelimit"
	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/store/memory"
	storepostgres "github.com/onelab-hq/onelab-server/internal/store/postgres"
	storesqlite "github.com/onelab-hq/onelab-server/internal/store/sqlite"
	"github.com/onelab-hq/onelab-server/internal/version"
)

func main() {
	root := flag.String("root", ".", "directory containing config/ and data/")
	initConfig := flag.Bool("init", false, "write starter config files and exit")
	force := flag.Bool("force", false, "with -init, overwrite existing config files")
	flag.Parse()

	if *initConfig {
		if err := runInit(*root, *force); err != nil {
			log.Fatalf("init config: %v", err)
		}
		return
	}

	cfg, err := config.LoadServerConfig(*root)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	logger, logCloser, err := logging.NewLogger("[onelabd] ", cfg.LogFile, logging.DefaultMaxBytes)
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	logger.Printf("onelabd %s", version.FullInfo())

	catalog := config.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = config.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			logger.Fatalf("load catalog %s: %v", cfg.CatalogPath, err)
		}
		logger.Printf("catalog loaded from %s", cfg.CatalogPath)
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()
	logger.Printf("storage driver: %s", cfg.StorageDriver)

	authSecret := cfg.AuthSecret
	if authSecret == "" {
		// Sessions issued against an ephemeral secret die with the process.
		authSecret = randomSecret()
		logger.Printf("auth_secret not configured; using an ephemeral session secret")
	}
	sessions := auth.NewManager(authSecret)

	var webhooks *auth.WebhookVerifier
	if cfg.WebhookSecret != "" {
		webhooks = auth.NewWebhookVerifier(cfg.WebhookSecret)
	} else {
		logger.Printf("webhook_secret not configured; payment webhooks disabled")
	}

	invoker := buildInvoker(cfg, logger)
	logger.Printf("generator backend: %s", invoker.Name())

	creditSvc := credits.New(st, catalog.Costs(), cfg.InitialCredits)
	srv := httpserver.New(httpserver.Options{
		Store:       st,
		Credits:     creditSvc,
		Generations: generations.New(st),
		APIKeys:     apikeys.New(st, logger),
		Invoker:     invoker,
		Sessions:    sessions,
		Webhooks:    webhooks,
		Limiter:     ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Catalog:     catalog,
		Metrics:     metrics.NewCollector(),
		Logger:      logger,
		LogLevel:    cfg.LogLevel,
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("onelabd listening on %s (env=%s)", cfg.ListenAddr, cfg.Environment)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	<-sigs

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func runInit(root string, force bool) error {
	opts := bootstrap.InitOptions{
		Root:          root,
		AuthSecret:    randomSecret(),
		WebhookSecret: randomSecret(),
		Force:         force,
	}
	if err := bootstrap.Init(opts); err != nil {
		return err
	}
	fmt.Printf("config files written under %s/config\n", root)
	return nil
}

func openStore(cfg config.ServerConfig) (store.Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		return storepostgres.New(cfg.DatabaseDSN)
	case "memory":
		return memory.New(), nil
	default:
		return storesqlite.New(cfg.SQLitePath)
	}
}

func buildInvoker(cfg config.ServerConfig, logger *log.Logger) generator.Invoker {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return loopback.New()
	}
	inv, err := generatoropenai.New(generatoropenai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.OpenAIModel,
		RequestTimeout: cfg.OpenAITimeout,
	})
	if err != nil {
		logger.Printf("openai generator init failed (%v); falling back to loopback", err)
		return loopback.New()
	}
	return inv
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
