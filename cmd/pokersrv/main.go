package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/pbnjay/memory"

	"github.com/feltstack/feltstack/pkg/auth"
	"github.com/feltstack/feltstack/pkg/bot"
	"github.com/feltstack/feltstack/pkg/config"
	"github.com/feltstack/feltstack/pkg/db"
	"github.com/feltstack/feltstack/pkg/gateway"
	"github.com/feltstack/feltstack/pkg/security"
	"github.com/feltstack/feltstack/pkg/table"
	"github.com/feltstack/feltstack/pkg/wallet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("SRVR")
	log.SetLevel(slog.LevelInfo)

	if total := memory.TotalMemory(); total > 0 {
		log.Infof("host memory: %d MiB total, %d MiB free", total/(1<<20), memory.FreeMemory()/(1<<20))
	} else {
		log.Warnf("could not determine host memory")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	authMgr := auth.NewManager(database.Pool, cfg.PasswordPeppr, cfg.JWTSecret)
	walletMgr := wallet.NewManager(database.Pool)
	registry := table.NewRegistry(database.Pool, walletMgr, log)

	if err := registry.LoadAll(ctx); err != nil {
		return fmt.Errorf("load tables: %w", err)
	}
	if len(registry.List()) == 0 {
		for i := 1; i <= cfg.NumTables; i++ {
			tblCfg := cfg.TableDefaults
			tblCfg.Name = fmt.Sprintf("Table %d", i)
			if _, err := registry.Create(ctx, tblCfg); err != nil {
				return fmt.Errorf("create table %d: %w", i, err)
			}
		}
	}

	for _, actor := range registry.List() {
		sv, err := actor.GetState(ctx)
		if err != nil {
			return fmt.Errorf("read table state: %w", err)
		}
		sup := newTableSupervisor(actor, sv.TableID, tableConfigFor(cfg, sv), walletMgr, log)
		go sup.run(ctx)
	}

	collusionDetector := security.NewDetector(database.Pool)
	state := gateway.NewState(authMgr, registry, walletMgr, collusionDetector)
	server := &http.Server{
		Addr:    cfg.Bind,
		Handler: gateway.NewRouter(state),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("listening on %s", cfg.Bind)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// tableConfigFor rebuilds the table.Config a supervisor needs for bot
// bookkeeping (blinds and bot policy) from a live table's state view, since
// the registry only hands back actors, not their originating Config.
func tableConfigFor(cfg *config.Config, sv *table.StateView) table.Config {
	tblCfg := cfg.TableDefaults
	tblCfg.ID = sv.TableID
	tblCfg.SmallBlind = sv.SmallBlind
	tblCfg.BigBlind = sv.BigBlind
	tblCfg.MaxPlayers = sv.MaxPlayers
	return tblCfg
}

// botUserID maps a bot's roster ID to the synthetic, negative account ID it
// seats under, keeping bot accounts out of the range auth.Manager hands out
// to real registrations.
func botUserID(id bot.ID) int64 { return -int64(id) }
