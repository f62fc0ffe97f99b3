// Package arcade wires configuration, storage, and the HTTP surface into the
// runnable arcade service.
package arcade

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	platformcmd "github.com/gemfall/arcade/internal/platform/cmd"
	"github.com/gemfall/arcade/internal/services/arcade/api/rest"
	"github.com/gemfall/arcade/internal/services/arcade/app"
	"github.com/gemfall/arcade/internal/services/arcade/settlement"
	"github.com/gemfall/arcade/internal/services/arcade/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Config holds the arcade command configuration.
type Config struct {
	HTTPAddr   string `env:"GEMFALL_ARCADE_ADDR" envDefault:"localhost:8080"`
	DBPath     string `env:"GEMFALL_ARCADE_DB" envDefault:"arcade.db"`
	AuthSecret string `env:"GEMFALL_AUTH_SECRET"`

	ResetZone string `env:"GEMFALL_RESET_ZONE" envDefault:"America/Denver"`
	ResetHour int    `env:"GEMFALL_RESET_HOUR" envDefault:"12"`

	ResolverURL    string `env:"GEMFALL_RESOLVER_URL"`
	ResolverAPIKey string `env:"GEMFALL_RESOLVER_API_KEY"`

	RPCURL          string        `env:"GEMFALL_RPC_URL"`
	PrivateKey      string        `env:"GEMFALL_PRIVATE_KEY"`
	TokenAddress    string        `env:"GEMFALL_TOKEN_ADDRESS"`
	ChainID         int64         `env:"GEMFALL_CHAIN_ID" envDefault:"8453"`
	TransferTimeout time.Duration `env:"GEMFALL_TRANSFER_TIMEOUT" envDefault:"45s"`
}

// ParseConfig loads environment defaults and applies flag overrides.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the arcade service and blocks until ctx is canceled or the
// server fails.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceArcade, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close storage: %v", err)
			}
		}()

		ledger, err := app.NewQuotaLedger(store, store, cfg.ResetZone, cfg.ResetHour)
		if err != nil {
			return fmt.Errorf("init quota ledger: %w", err)
		}
		engine := app.NewEngine(store, store, ledger)

		resolver, transferrer, err := settlementCollaborators(cfg)
		if err != nil {
			return err
		}
		settle := app.NewSettlement(store, resolver, transferrer, cfg.TransferTimeout)

		handler := rest.NewHandler(engine, settle, cfg.AuthSecret)
		return serve(ctx, cfg.HTTPAddr, handler.Router())
	})
}

// settlementCollaborators builds the external payout collaborators, falling
// back to fail-closed stand-ins when their settings are absent.
func settlementCollaborators(cfg Config) (app.AddressResolver, app.TokenTransferrer, error) {
	var resolver app.AddressResolver = settlement.Unconfigured{}
	if strings.TrimSpace(cfg.ResolverURL) != "" {
		httpResolver, err := settlement.NewHTTPResolver(cfg.ResolverURL, cfg.ResolverAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("init address resolver: %w", err)
		}
		resolver = httpResolver
	}

	var transferrer app.TokenTransferrer = settlement.Unconfigured{}
	if strings.TrimSpace(cfg.RPCURL) != "" {
		erc20, err := settlement.NewERC20Transferrer(settlement.TransferConfig{
			RPCURL:       cfg.RPCURL,
			PrivateKey:   cfg.PrivateKey,
			TokenAddress: cfg.TokenAddress,
			ChainID:      cfg.ChainID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init token transferrer: %w", err)
		}
		transferrer = erc20
	}
	return resolver, transferrer, nil
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Printf("arcade listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve arcade: %w", err)
	}
}
