// Command agentchatd runs the agentchat coordination server: a single
// websocket endpoint speaking the identify/message/proposal/arbitration
// protocol implemented by internal/server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentchat/server/internal/accesslist"
	"github.com/agentchat/server/internal/arbitration"
	"github.com/agentchat/server/internal/captcha"
	"github.com/agentchat/server/internal/channel"
	"github.com/agentchat/server/internal/config"
	"github.com/agentchat/server/internal/hooks"
	"github.com/agentchat/server/internal/identity"
	"github.com/agentchat/server/internal/inbox"
	"github.com/agentchat/server/internal/proposal"
	"github.com/agentchat/server/internal/reputation"
	"github.com/agentchat/server/internal/server"
	"github.com/agentchat/server/internal/session"
	"github.com/agentchat/server/internal/skills"
	"github.com/agentchat/server/internal/timer"
)

func main() {
	root := &cobra.Command{
		Use:   "agentchatd",
		Short: "agentchat real-time multi-agent coordination server",
		RunE:  runServe,
	}
	root.Flags().String("config", "", "unused placeholder for a future file-based config source")
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("agentchatd: %v", err))
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	stores, err := buildStores(cfg)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}

	srv := server.New(cfg, stores, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.ServeWS)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		fmt.Println(color.CyanString("agentchatd listening on %s", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println(color.YellowString("agentchatd shutting down"))
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildStores wires every central store the Server depends on. The
// arbitration store needs a pool of live candidate agents, which needs
// the session manager and reputation store to already exist — so it is
// built here, before the Server itself, via server.PoolProvider.
func buildStores(cfg *config.Config) (server.Stores, error) {
	var st server.Stores

	st.Sessions = session.NewManager(cfg.RateLimit.MsgInterval, cfg.RateLimit.NickInterval)
	st.Channels = channel.NewStore(cfg.Server.ReplayRingSize)
	st.Skills = skills.NewRegistry()
	st.Timers = timer.NewStore()
	st.Hooks = hooks.NewDispatcher()
	st.Captcha = captcha.NewStore(cfg.Captcha.Timeout, cfg.Captcha.MaxAttempts)
	st.Handshake = identity.NewHandshake(0)

	rep, err := buildReputationStore(cfg)
	if err != nil {
		return st, err
	}
	st.Reputation = rep

	st.Proposals = proposal.NewStore(rep)
	st.Arbitration = arbitration.NewStore(rep, server.PoolProvider(st.Sessions, rep))

	allowlist, err := accesslist.Load(filepath.Join(cfg.Server.DataDir, "allowlist.json"))
	if err != nil {
		return st, fmt.Errorf("load allowlist: %w", err)
	}
	st.Allowlist = allowlist

	banlist, err := accesslist.Load(filepath.Join(cfg.Server.DataDir, "banlist.json"))
	if err != nil {
		return st, fmt.Errorf("load banlist: %w", err)
	}
	st.Banlist = banlist

	firstSeen, err := identity.LoadFirstSeenStore(filepath.Join(cfg.Server.DataDir, "firstseen.json"))
	if err != nil {
		return st, fmt.Errorf("load first-seen store: %w", err)
	}
	st.FirstSeen = firstSeen

	ib, err := inbox.Open(cfg.Server.DataDir, cfg.Server.MaxInboxLines)
	if err != nil {
		return st, fmt.Errorf("open inbox: %w", err)
	}
	st.Inbox = ib

	wireInboxSink(st.Hooks, ib)

	return st, nil
}

func buildReputationStore(cfg *config.Config) (reputation.Store, error) {
	if cfg.Server.UseSQLite {
		return reputation.NewSQLiteStore(filepath.Join(cfg.Server.DataDir, "reputation.db"), reputation.MinRating)
	}
	return reputation.NewMemoryStore(reputation.MinRating), nil
}

// wireInboxSink subscribes every hook kind to an append-only JSONL
// record in the inbox, giving operators a durable audit trail of
// escrow and verdict events independent of in-memory session state.
func wireInboxSink(d *hooks.Dispatcher, ib *inbox.Inbox) {
	sink := func(ctx context.Context, ev hooks.Event) error {
		return ib.Append(map[string]any{
			"kind": ev.Kind, "subject": ev.Subject, "data": ev.Data,
		})
	}
	for _, kind := range []string{"escrow_opened", "escrow_settled", "verdict_resolved", "completion"} {
		d.Subscribe(kind, sink)
	}
}
