package media

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
)

// RecordIVF writes the frames of a received video track to out until the
// track ends. It returns the number of RTP packets read.
func RecordIVF(track *webrtc.TrackRemote, out io.Writer) (int, error) {
	return recordIVF(func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	}, track.Codec().MimeType, out)
}

func recordIVF(next func() (*rtp.Packet, error), mime string, out io.Writer) (int, error) {
	writer, err := ivfwriter.NewWith(out, ivfwriter.WithCodec(mime))
	if err != nil {
		return 0, fmt.Errorf("create ivf writer for %s: %w", mime, err)
	}

	packets := 0
	for {
		pkt, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return packets, errors.Join(err, writer.Close())
		}
		packets++
		if err := writer.WriteRTP(pkt); err != nil {
			writer.Close()
			return packets, fmt.Errorf("write rtp: %w", err)
		}
	}
}

// Discard drains a received track without keeping it, returning the number
// of packets read.
func Discard(track *webrtc.TrackRemote) int {
	packets := 0
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return packets
		}
		packets++
	}
}
