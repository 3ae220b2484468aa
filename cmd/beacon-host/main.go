package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"party-beacon/internal/beacon"
	"party-beacon/internal/config"
	"party-beacon/internal/eventstream"
	"party-beacon/internal/host"
	"party-beacon/internal/ledger"
	"party-beacon/internal/logging"
	"party-beacon/internal/notify"
	"party-beacon/internal/registry"
	"party-beacon/internal/store"
	httptransport "party-beacon/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	hcfg := cfg.Host
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := newLedger(hcfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ledger init failed")
	}

	sessionID := hcfg.SessionID
	if sessionID == "" {
		sessionID = beacon.NewSessionID()
	}
	owner := beacon.PlayerID(hcfg.OwnerID)

	var (
		st  *store.Store
		reg registry.SessionRegistry
	)
	if hcfg.PostgresDSN != "" {
		st, err = store.New(ctx, hcfg.PostgresDSN, store.WithMaxConns(hcfg.PostgresMaxConns))
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		if err := st.CreateSession(ctx, sessionID, owner); err != nil {
			log.Fatal().Err(err).Str("session_id", sessionID).Msg("create session failed")
		}
		reg = st.Registry(sessionID, owner)
	} else {
		log.Warn().Msg("POSTGRES_DSN not set; using in-memory session roster")
		reg = registry.NewMemory(sessionID, owner)
	}

	notifyCfg, err := notify.ConfigFromEnv(cfg.Notify)
	if err != nil {
		log.Fatal().Err(err).Msg("notify config failed")
	}
	notifier := notify.NewNotifier(notifyCfg)
	if err := notifier.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("notifier start failed")
	}

	events := eventstream.NewBuffer(500)

	h := host.New(host.Config{
		SweepInterval:  hcfg.SweepInterval,
		TravelTimeout:  hcfg.TravelTimeout,
		SessionTimeout: hcfg.SessionTimeout,
	}, l, reg, host.WithNotifier(notify.Fanout{notifier, events}))
	hostDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hostDone)
	}()

	r := httptransport.NewRouter(h, st, events, hcfg)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              hcfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		// Open event streams would otherwise hold Shutdown until its deadline.
		events.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", hcfg.HTTPAddr).
		Str("session_id", sessionID).
		Str("owner_id", string(owner)).
		Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	<-hostDone
	log.Info().Msg("beacon host exited")
}

func newLedger(cfg config.HostConfig) (*ledger.Ledger, error) {
	method, err := ledger.ParseTeamAssignment(cfg.TeamAssignment)
	if err != nil {
		return nil, err
	}
	policy, err := ledger.NewPolicy(cfg.ReservationPolicy, cfg.BannedPlayers, cfg.MaxPartySize)
	if err != nil {
		return nil, err
	}
	return ledger.New(ledger.Config{
		TeamCount:       cfg.TeamCount,
		TeamSize:        cfg.TeamSize,
		MaxReservations: cfg.MaxReservations,
		TeamAssignment:  method,
		ForceTeam:       cfg.ForceTeam,
		Strict:          cfg.StrictInvariants,
	}, ledger.WithPolicy(policy))
}
