package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"party-beacon/internal/beacon"
	"party-beacon/internal/client"
	"party-beacon/internal/config"
	"party-beacon/internal/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errNotAccepted = errors.New("reservation not accepted")

// beacon-client reserves space for a party on a beacon host and reports
// the outcome.
func main() {
	logCfg, err := config.LoadLogFor("beacon-client")
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	defer logging.Close()

	cfg, err := config.ParseClient()
	if err != nil {
		log.Fatal().Err(err).Msg("load client config failed")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errNotAccepted) {
			log.Error().Err(err).Msg("beacon client failed")
		}
		logging.Close()
		os.Exit(1)
	}
}

// newRootCmd binds flags over the environment defaults already in cfg.
func newRootCmd(cfg *config.ClientConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "beacon-client",
		Short:         "Reserve session slots for a party on a beacon host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfg.HostURL, "host", cfg.HostURL, "beacon websocket url")
	flags.StringVar(&cfg.SessionID, "session", cfg.SessionID, "hosted session id")
	flags.StringVar(&cfg.LeaderID, "leader", cfg.LeaderID, "party leader id")
	flags.StringSliceVar(&cfg.Members, "members", cfg.Members, "other party members")
	flags.StringVar(&cfg.Validation, "validation", cfg.Validation, "validation token sent with each member")
	flags.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "dial timeout")
	flags.DurationVar(&cfg.CancelTimeout, "cancel-timeout", cfg.CancelTimeout, "cancel failsafe timeout")

	reserve := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), *cfg, beacon.RequestReserve)
	}
	root.RunE = reserve
	root.AddCommand(
		&cobra.Command{
			Use:   "reserve",
			Short: "Reserve slots for a new party",
			RunE:  reserve,
		},
		&cobra.Command{
			Use:   "update",
			Short: "Add members to the leader's existing reservation",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), *cfg, beacon.RequestUpdate)
			},
		},
	)
	return root
}

func run(ctx context.Context, cfg config.ClientConfig, kind beacon.RequestKind) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.ConnectTimeout)
	tr, err := client.DialWebsocket(dialCtx, cfg.HostURL, nil)
	cancelDial()
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.HostURL, err)
	}

	h := client.NewHandle(client.Config{SessionID: cfg.SessionID, CancelTimeout: cfg.CancelTimeout}, tr)
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go func() {
		if err := h.Run(runCtx); err != nil && runCtx.Err() == nil {
			log.Warn().Err(err).Msg("beacon transport closed")
		}
	}()

	party := buildParty(cfg)
	if kind == beacon.RequestUpdate {
		err = h.RequestReservationUpdate(party)
	} else {
		err = h.RequestReservation(party)
	}
	if err != nil {
		return fmt.Errorf("%s request: %w", kind, err)
	}

	interrupted := ctx.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			log.Info().Msg("canceling reservation request")
			if err := h.CancelReservation(); err != nil {
				return fmt.Errorf("cancel: %w", err)
			}
		case ev := <-h.Events():
			switch ev.Kind {
			case client.EventCountChanged:
				log.Info().Int("remaining", ev.Remaining).Msg("reservation count changed")
			case client.EventFull:
				log.Info().Msg("session reservations full")
			case client.EventResult:
				log.Info().
					Str("request", ev.Request.String()).
					Str("outcome", ev.Outcome.String()).
					Bool("assumed", ev.Assumed).
					Msg("reservation request finished")
				if ev.Outcome != beacon.OutcomeAccepted {
					return errNotAccepted
				}
				return nil
			}
		}
	}
}

func buildParty(cfg config.ClientConfig) beacon.PartyReservation {
	leader := beacon.PlayerID(cfg.LeaderID)
	party := beacon.PartyReservation{
		LeaderID: leader,
		TeamNum:  beacon.NoTeam,
		Players:  []beacon.PlayerReservation{{PlayerID: leader, ValidationStr: cfg.Validation}},
	}
	for _, m := range cfg.Members {
		id := beacon.PlayerID(m)
		if !id.Valid() || id == leader {
			continue
		}
		party.Players = append(party.Players, beacon.PlayerReservation{PlayerID: id, ValidationStr: cfg.Validation})
	}
	if cfg.Validation == "" {
		// The leader must carry a token; default to the session id.
		party.Players[0].ValidationStr = cfg.SessionID
	}
	return party
}
