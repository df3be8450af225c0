package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/client"
	"github.com/Vinitharameshchand/akai-itoo/internal/dns"
	"github.com/Vinitharameshchand/akai-itoo/internal/ui"
)

var httpClient = &http.Client{
	Timeout:   10 * time.Second,
	Transport: &http.Transport{DialContext: dns.DialContext},
}

func newRoomsCmd(f *flags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Show how busy the relay is",
		Long: `Show how many rooms and connections the relay currently holds.

Examples:
  itoo rooms
  itoo rooms --format markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case ui.FormatTable, ui.FormatMarkdown, ui.FormatCSV:
			default:
				return fmt.Errorf("unknown format %q (want table, markdown or csv)", format)
			}

			cfg, err := LoadConfig(f.options())
			if err != nil {
				return err
			}
			stats, err := fetchRoomStats(cmd.Context(), cfg.HTTPBase())
			if err != nil {
				return err
			}

			view, err := ui.RoomStatsView(stats, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), view)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", ui.FormatTable, "output format: table, markdown or csv")
	return cmd
}

func fetchRoomStats(ctx context.Context, base string) (ui.RoomStats, error) {
	stats := ui.RoomStats{Relay: base}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/rooms", nil)
	if err != nil {
		return stats, client.NewError("fetch room stats", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return stats, client.NewError("fetch room stats", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, client.WrapError("fetch room stats", client.ErrSignalingError, resp.Status)
	}

	var body struct {
		Rooms       int `json:"rooms"`
		Connections int `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return stats, client.WrapError("fetch room stats", client.ErrSignalingError, err.Error())
	}
	stats.Rooms = body.Rooms
	stats.Connections = body.Connections
	return stats, nil
}
