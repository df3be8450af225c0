package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
	"github.com/Vinitharameshchand/akai-itoo/internal/ui"
)

func newVibeCmd(f *flags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "vibe <type> <value>",
		Short: "Share your mood, status or a ritual with your partner",
		Long: fmt.Sprintf(`Send one presence update to your partner, or watch theirs.

Types: %s
The value is sent as JSON when it parses as JSON, otherwise as text.

Examples:
  itoo vibe mood happy
  itoo vibe wellness '{"water":3}'
  itoo vibe --watch`, kindList()),
		Args: func(cmd *cobra.Command, args []string) error {
			if watch {
				return cobra.NoArgs(cmd, args)
			}
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return err
			}
			if !protocol.VibeKind(args[0]).Valid() {
				return fmt.Errorf("unknown vibe type %q (want one of %s)", args[0], kindList())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer conn.Close()

			if watch {
				return watchVibes(cmd, conn)
			}

			ev := protocol.VibeUpdate{
				RoomID: conn.Client.Room(),
				Type:   protocol.VibeKind(args[0]),
				Value:  parseVibeValue(args[1]),
			}
			if err := conn.Client.Emit(ev); err != nil {
				return err
			}
			if err := conn.Flush(cmd.Context()); err != nil {
				return err
			}
			ui.PrintSuccessf("%s %s set to %v", ui.IconVibe, ev.Type, ev.Value)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "print your partner's updates until interrupted")
	return cmd
}

func watchVibes(cmd *cobra.Command, conn *ConnectionContext) error {
	ui.PrintInfof("Watching %s, press Ctrl+C to stop", conn.Client.Room())
	for {
		select {
		case ev, ok := <-conn.Handler.Vibe:
			if !ok {
				ui.PrintWarning("relay connection closed")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s partner %s: %v\n", ui.IconVibe, ev.Type, ev.Value)
		case <-cmd.Context().Done():
			return nil
		}
	}
}

// parseVibeValue keeps JSON values typed and sends anything else as text.
func parseVibeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func kindList() string {
	kinds := make([]string, len(protocol.VibeKinds))
	for i, k := range protocol.VibeKinds {
		kinds[i] = string(k)
	}
	return strings.Join(kinds, ", ")
}
