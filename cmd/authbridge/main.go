package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/otiai10/authbridge/internal/bridge"
	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/config"
	"github.com/otiai10/authbridge/internal/identity"
	"github.com/otiai10/authbridge/internal/security"
	"github.com/otiai10/authbridge/internal/server"
	"github.com/otiai10/authbridge/internal/version"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to YAML config file (environment only when empty)")
	stdio := flag.Bool("stdio", false, "Serve a single channel over stdin/stdout instead of WebSocket")
	flag.Parse()

	// Load .env.localdev file if it exists (for local development)
	// Silently ignore if file doesn't exist (production uses real env vars)
	_ = godotenv.Load(".env.localdev")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	if cfg.Identity.EmulatorHost != "" {
		log.Printf("Using Auth emulator at %s", cfg.Identity.EmulatorHost)
	} else {
		tenantInfo := ""
		if cfg.Identity.TenantID != "" {
			tenantInfo = ", tenant: " + cfg.Identity.TenantID
		}
		log.Printf("Initializing Firebase Auth for project: %s%s", cfg.Identity.ProjectID, tenantInfo)
	}

	client, err := identity.NewClient(ctx, identity.ClientConfig{
		APIKey:          cfg.Identity.APIKey,
		ProjectID:       cfg.Identity.ProjectID,
		TenantID:        cfg.Identity.TenantID,
		EmulatorHost:    cfg.Identity.EmulatorHost,
		CredentialsPath: cfg.Identity.Credentials,
		VerifyTokens:    cfg.Identity.VerifyTokens,
		ResendWindow:    cfg.Phone.ResendWindow,
		TestNumbers:     cfg.Phone.TestNumbers,

		AutoRetrievalDelay: cfg.Phone.AutoRetrievalDelay,
	})
	if err != nil {
		log.Fatalf("Failed to create identity client: %v", err)
	}
	if len(cfg.Phone.TestNumbers) > 0 {
		log.Printf("Phone test numbers enabled: %d", len(cfg.Phone.TestNumbers))
	}

	bridgeOpts := []bridge.Option{
		bridge.WithPhotoURLValidator(func(u string) error {
			return security.ValidatePhotoURL(u, cfg.Server.AllowLocalhost)
		}),
	}

	log.Printf("authbridge %s", version.Short())

	if *stdio {
		if err := server.ServeConn(ctx, channel.NewStreamConn(os.Stdin, os.Stdout), client, bridgeOpts...); err != nil {
			log.Fatalf("Channel error: %v", err)
		}
		log.Println("Goodbye!")
		return
	}

	routerCfg := server.RouterConfig{
		Identity:      client,
		BaseContext:   ctx,
		Origins:       security.NewOriginPolicy(cfg.Server.AllowedOrigins, cfg.Server.AllowLocalhost),
		BridgeOptions: bridgeOpts,

		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}
	if cfg.Server.ConnectionsPerMinute > 0 {
		routerCfg.ConnRateLimit = &server.RateLimitConfig{RequestsPerMinute: cfg.Server.ConnectionsPerMinute}
	}
	if len(cfg.Server.AllowedOrigins) == 0 && !cfg.Server.AllowLocalhost {
		log.Println("No allowed origins configured: only non-browser clients can connect")
	}

	srv := server.NewServer(cfg.Server.Addr, server.NewRouter(routerCfg))
	go func() {
		log.Printf("Starting channel server on %s", cfg.Server.Addr)
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")

	log.Println("Goodbye!")
}
