package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
)

// Source supplies the local tracks of a session and feeds them once the
// peer connection is up.
type Source interface {
	Tracks() []webrtc.TrackLocal
	// Start writes media until the source is exhausted or ctx is done.
	Start(ctx context.Context) error
	Close() error
}

// IVFSource streams the frames of an IVF file as one video track, paced by
// the file's timebase.
type IVFSource struct {
	file   *os.File
	reader *ivfreader.IVFReader
	header *ivfreader.IVFFileHeader
	track  *webrtc.TrackLocalStaticSample
	sent   atomic.Int64
}

// OpenIVF opens path and prepares a track matching its codec.
func OpenIVF(path string) (*IVFSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read ivf header: %w", err)
	}

	mime, err := mimeForFourCC(header.FourCC)
	if err != nil {
		file.Close()
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, "video", "itoo-cinema")
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create video track: %w", err)
	}

	return &IVFSource{file: file, reader: reader, header: header, track: track}, nil
}

func mimeForFourCC(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	}
	return "", fmt.Errorf("unsupported ivf codec %q", fourCC)
}

func (s *IVFSource) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.track}
}

// FrameDuration is the playback interval of one frame.
func (s *IVFSource) FrameDuration() time.Duration {
	if s.header.TimebaseDenominator == 0 {
		return time.Second / 30
	}
	return time.Duration(float64(time.Second) * float64(s.header.TimebaseNumerator) / float64(s.header.TimebaseDenominator))
}

// Sent returns the number of frames written so far.
func (s *IVFSource) Sent() int {
	return int(s.sent.Load())
}

func (s *IVFSource) Start(ctx context.Context) error {
	duration := s.FrameDuration()
	ticker := time.NewTicker(duration)
	defer ticker.Stop()

	for {
		frame, _, err := s.reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read ivf frame: %w", err)
		}

		if err := s.track.WriteSample(pionmedia.Sample{Data: frame, Duration: duration}); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
		s.sent.Add(1)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *IVFSource) Close() error {
	return s.file.Close()
}
