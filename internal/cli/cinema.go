package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/client"
	"github.com/Vinitharameshchand/akai-itoo/internal/media"
	"github.com/Vinitharameshchand/akai-itoo/internal/ui"
)

func newCinemaCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cinema",
		Short: "Stream a video to your partner",
		Long: `Stream a video file to your partner over WebRTC. The relay only carries
the negotiation; media flows directly between you, or through TURN.

Your partner starts watching first, then you host:
  itoo cinema watch --out tonight.ivf
  itoo cinema host movie.ivf`,
	}
	cmd.AddCommand(newCinemaHostCmd(f), newCinemaWatchCmd(f))
	return cmd
}

func newCinemaHostCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "host <file.ivf>",
		Short: "Share a VP8, VP9 or AV1 IVF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := media.OpenIVF(args[0])
			if err != nil {
				return err
			}

			conn, err := connect(cmd.Context(), f)
			if err != nil {
				src.Close()
				return err
			}
			defer conn.Close()

			if !conn.Client.PartnerPresent() {
				ui.PrintWarning("your partner is not connected yet; they should run `itoo cinema watch` first")
			}

			session := media.NewSession(conn.Client.Room(), conn.Client, media.ConfigFromClient(conn.Config))
			ended := watchSession(session, nil)
			if err := session.Start(cmd.Context(), src); err != nil {
				src.Close()
				return err
			}
			ui.PrintInfof("%s Sharing %s, press Ctrl+C to stop", ui.IconCinema, filepath.Base(args[0]))

			err = pumpMedia(cmd.Context(), conn, session, ended)
			stopSession(conn, session)
			ui.PrintSuccessf("Sent %d frames", src.Sent())
			return err
		},
	}
}

func newCinemaWatchCmd(f *flags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Receive your partner's stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer conn.Close()

			session := media.NewSession(conn.Client.Room(), conn.Client, media.ConfigFromClient(conn.Config))
			received := make(chan int, 1)
			session.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
				ui.PrintInfof("%s Receiving %s", ui.IconCinema, track.Codec().MimeType)
				n, err := receiveTrack(track, out)
				if err != nil {
					slog.Warn("recording stopped", "error", err)
				}
				select {
				case received <- n:
				default:
				}
			})
			stopSpinner := ui.RunWaitingSpinner("Waiting for your partner to start a stream...")
			ended := watchSession(session, stopSpinner)

			err = pumpMedia(cmd.Context(), conn, session, ended)
			stopSpinner()
			stopSession(conn, session)

			select {
			case n := <-received:
				ui.PrintSuccessf("Received %d packets", n)
			case <-time.After(2 * time.Second):
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "save the stream to this IVF file")
	return cmd
}

func receiveTrack(track *webrtc.TrackRemote, out string) (int, error) {
	if out == "" {
		return media.Discard(track), nil
	}
	file, err := os.Create(out)
	if err != nil {
		return media.Discard(track), err
	}
	defer file.Close()
	return media.RecordIVF(track, file)
}

// watchSession reports progress and returns a channel closed once the
// session falls back to idle. onActive, if set, runs when negotiation starts.
func watchSession(session *media.Session, onActive func()) <-chan struct{} {
	ended := make(chan struct{})
	var endOnce, activeOnce sync.Once
	session.OnStateChange(func(s media.State) {
		slog.Debug("media session", "state", s)
		switch s {
		case media.StateNegotiating:
			if onActive != nil {
				activeOnce.Do(onActive)
			}
		case media.StateConnected:
			ui.PrintSuccess("Connected to your partner")
		case media.StateIdle:
			endOnce.Do(func() { close(ended) })
		}
	})
	return ended
}

// pumpMedia feeds the partner's media events to session until the stream
// ends or ctx is done.
func pumpMedia(ctx context.Context, conn *ConnectionContext, session *media.Session, ended <-chan struct{}) error {
	for {
		select {
		case ev, ok := <-conn.Handler.Media:
			if !ok {
				return client.NewError("stream", client.ErrClosed)
			}
			if err := session.Handle(ev); err != nil {
				slog.Warn("media event rejected", "type", ev.Category(), "error", err)
			}
		case <-ended:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func stopSession(conn *ConnectionContext, session *media.Session) {
	if err := session.Stop(); err != nil {
		slog.Debug("stop stream", "error", err)
		return
	}
	if err := conn.Flush(context.Background()); err != nil {
		slog.Debug("flush stream stop", "error", err)
	}
}
