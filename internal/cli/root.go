// Package cli implements the itoo command.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/config"
	"github.com/Vinitharameshchand/akai-itoo/internal/ui"
	"github.com/Vinitharameshchand/akai-itoo/internal/version"
)

// flags are the persistent options shared by every command.
type flags struct {
	relay    string
	codec    string
	me       string
	partner  string
	name     string
	stun     string
	turn     string
	turnUser string
	turnPass string
	relayICE bool
}

func (f *flags) options() config.Options {
	return config.Options{
		RelayURL:   f.relay,
		Codec:      f.codec,
		Me:         f.me,
		Partner:    f.partner,
		Name:       f.name,
		STUNServer: f.stun,
		TURNServer: f.turn,
		TURNUser:   f.turnUser,
		TURNPass:   f.turnPass,
		ForceRelay: f.relayICE,
	}
}

// NewRootCmd builds the itoo command tree.
func NewRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "itoo",
		Short: "Realtime companion for a pair: chat, games, vibes and movie nights",
		Long: `itoo connects you and your partner through an akai-itoo relay.

Both of you pass your own id with --me and the other's with --partner; the
relay puts you in the same room no matter who connects first.`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Output = cmd.OutOrStdout()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.relay, "relay", "", "relay websocket URL (env ITOO_RELAY_URL)")
	pf.StringVar(&f.codec, "codec", "", "envelope codec: json or msgpack (env ITOO_CODEC)")
	pf.StringVar(&f.me, "me", "", "your participant id (env ITOO_ME)")
	pf.StringVar(&f.partner, "partner", "", "your partner's id (env ITOO_PARTNER)")
	pf.StringVar(&f.name, "name", "", "display name in chat (env ITOO_NAME)")
	pf.StringVar(&f.stun, "stun", "", "STUN server URL (env STUN_SERVER)")
	pf.StringVar(&f.turn, "turn", "", "TURN server URL (env TURN_SERVER)")
	pf.StringVar(&f.turnUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	pf.StringVar(&f.turnPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	pf.BoolVar(&f.relayICE, "force-relay", false, "only use TURN candidates for media (env FORCE_RELAY)")

	root.AddCommand(
		newRoomKeyCmd(),
		newChatCmd(f),
		newVibeCmd(f),
		newGameCmd(f),
		newCinemaCmd(f),
		newRoomsCmd(f),
	)
	return root
}

// Execute runs the itoo command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
