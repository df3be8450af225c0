package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

// Signaler carries session events to the partner. The relay client
// satisfies it.
type Signaler interface {
	Emit(ev protocol.Event) error
}

// Session is one side of a screen-share or cinema stream between the two
// members of a room.
//
// A session moves idle -> offering -> negotiating -> connected on the
// sharing side and idle -> negotiating -> connected on the viewing side.
// Stop, a remote stream_stopped or a failed connection returns it to idle.
// Every return to idle discards the peer connection; the next stream builds
// a fresh one.
type Session struct {
	room     string
	signaler Signaler
	cfg      Config

	mu    sync.Mutex
	state State
	pc    *webrtc.PeerConnection
	src   Source

	// remote candidates waiting for a remote description
	pending []webrtc.ICECandidateInit
	// local candidates waiting for our offer or answer to go out
	unsent     []webrtc.ICECandidateInit
	signalSent bool

	// closed when the current stream connects
	connected    chan struct{}
	cancelSource context.CancelFunc
	onTrack      func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	onState      func(State)
}

// NewSession creates an idle session for room.
func NewSession(room string, signaler Signaler, cfg Config) *Session {
	return &Session{room: room, signaler: signaler, cfg: cfg}
}

// OnTrack registers a callback for remote tracks on the viewing side.
func (s *Session) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTrack = fn
}

// OnStateChange registers a callback run after every transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingCandidates returns how many remote candidates wait for a remote
// description.
func (s *Session) PendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Start shares source with the partner: it builds a peer connection carrying
// the source's tracks and emits webrtc_offer followed by stream_started.
func (s *Session) Start(ctx context.Context, source Source) error {
	s.mu.Lock()
	if s.state != StateIdle {
		from := s.state
		s.mu.Unlock()
		return transitionError("start", from)
	}

	pc, err := s.newPeerConnection()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for _, track := range source.Tracks() {
		if _, err := pc.AddTrack(track); err != nil {
			s.mu.Unlock()
			pc.Close()
			return fmt.Errorf("add track: %w", err)
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err == nil {
		err = pc.SetLocalDescription(offer)
	}
	if err != nil {
		s.mu.Unlock()
		pc.Close()
		return fmt.Errorf("create offer: %w", err)
	}

	s.pc = pc
	s.src = source
	sourceCtx, cancel := context.WithCancel(ctx)
	s.cancelSource = cancel
	connected := make(chan struct{})
	s.connected = connected
	s.setState(StateOffering)
	s.mu.Unlock()

	go func() {
		// media flows once the partner is connected
		select {
		case <-connected:
		case <-sourceCtx.Done():
			return
		}
		if err := source.Start(sourceCtx); err != nil {
			slog.Warn("media source stopped", "room", s.room, "error", err)
		}
	}()

	if err := s.signaler.Emit(protocol.WebRTCOffer{RoomID: s.room, Offer: toProtoDescription(offer)}); err != nil {
		s.teardown()
		return fmt.Errorf("emit offer: %w", err)
	}
	if err := s.signaler.Emit(protocol.StreamStarted{RoomID: s.room}); err != nil {
		s.teardown()
		return fmt.Errorf("emit stream started: %w", err)
	}
	s.flushLocalCandidates(pc)
	return nil
}

// HandleOffer answers a partner's offer on the viewing side.
func (s *Session) HandleOffer(ev protocol.WebRTCOffer) error {
	s.mu.Lock()
	if s.state != StateIdle {
		from := s.state
		s.mu.Unlock()
		return transitionError("handle offer", from)
	}

	pc, err := s.newPeerConnection()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if err := pc.SetRemoteDescription(fromProtoDescription(ev.Offer)); err != nil {
		s.mu.Unlock()
		pc.Close()
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err == nil {
		err = pc.SetLocalDescription(answer)
	}
	if err != nil {
		s.mu.Unlock()
		pc.Close()
		return fmt.Errorf("create answer: %w", err)
	}

	s.pc = pc
	s.setState(StateNegotiating)
	s.mu.Unlock()

	if err := s.signaler.Emit(protocol.WebRTCAnswer{RoomID: s.room, Answer: toProtoDescription(answer)}); err != nil {
		s.teardown()
		return fmt.Errorf("emit answer: %w", err)
	}
	s.flushLocalCandidates(pc)
	return nil
}

// HandleAnswer applies the partner's answer on the sharing side.
func (s *Session) HandleAnswer(ev protocol.WebRTCAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOffering {
		return transitionError("handle answer", s.state)
	}
	if err := s.pc.SetRemoteDescription(fromProtoDescription(ev.Answer)); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.applyPendingLocked()
	s.setState(StateNegotiating)
	return nil
}

// HandleCandidate adds a remote ICE candidate, or buffers it until the
// remote description is known.
func (s *Session) HandleCandidate(ev protocol.WebRTCICECandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return transitionError("handle candidate", s.state)
	}
	if s.pc == nil {
		return ErrNoPeerConnection
	}

	candidate := fromProtoCandidate(ev.Candidate)
	if s.pc.RemoteDescription() == nil {
		s.pending = append(s.pending, candidate)
		return nil
	}
	if err := s.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Handle dispatches a media event received from the partner.
func (s *Session) Handle(ev protocol.Event) error {
	switch e := ev.(type) {
	case protocol.WebRTCOffer:
		return s.HandleOffer(e)
	case protocol.WebRTCAnswer:
		return s.HandleAnswer(e)
	case protocol.WebRTCICECandidate:
		return s.HandleCandidate(e)
	case protocol.StreamStopped:
		s.teardown()
		return nil
	case protocol.StreamStarted:
		slog.Debug("partner started a stream", "room", s.room)
		return nil
	}
	return fmt.Errorf("not a media event: %s", ev.Category())
}

// Stop ends the stream locally and tells the partner. Stopping an idle
// session does nothing.
func (s *Session) Stop() error {
	if !s.teardown() {
		return nil
	}
	return s.signaler.Emit(protocol.StreamStopped{RoomID: s.room})
}

// teardown returns the session to idle. It reports whether there was
// anything to tear down.
func (s *Session) teardown() bool {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return false
	}

	pc, src, cancel := s.pc, s.src, s.cancelSource
	s.pc, s.src, s.cancelSource, s.connected = nil, nil, nil, nil
	s.pending, s.unsent, s.signalSent = nil, nil, false
	s.setState(StateIdle)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if src != nil {
		src.Close()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			slog.Debug("closing peer connection", "room", s.room, "error", err)
		}
	}
	return true
}

// newPeerConnection builds a connection with the session's callbacks. The
// callbacks ignore events from connections the session no longer owns.
func (s *Session) newPeerConnection() (*webrtc.PeerConnection, error) {
	configuration := webrtc.Configuration{
		ICEServers:         s.cfg.ICEServers,
		ICETransportPolicy: s.cfg.Policy,
	}
	var (
		pc  *webrtc.PeerConnection
		err error
	)
	if s.cfg.API != nil {
		pc, err = s.cfg.API.NewPeerConnection(configuration)
	} else {
		pc, err = webrtc.NewPeerConnection(configuration)
	}
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()

		s.mu.Lock()
		if s.pc != pc {
			s.mu.Unlock()
			return
		}
		if !s.signalSent {
			s.unsent = append(s.unsent, init)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.emitCandidate(init)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.mu.Lock()
		if s.pc != pc {
			s.mu.Unlock()
			return
		}
		switch state {
		case webrtc.PeerConnectionStateConnected:
			if s.state == StateNegotiating {
				s.setState(StateConnected)
			}
			s.mu.Unlock()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.mu.Unlock()
			slog.Warn("peer connection ended", "room", s.room, "state", state.String())
			s.teardown()
		default:
			s.mu.Unlock()
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		s.mu.Lock()
		if s.pc != pc {
			s.mu.Unlock()
			return
		}
		if s.state == StateNegotiating {
			s.setState(StateConnected)
		}
		fn := s.onTrack
		s.mu.Unlock()

		if fn != nil {
			fn(track, receiver)
		}
	})

	return pc, nil
}

// flushLocalCandidates sends the candidates gathered before our description
// went out, then lets new candidates go straight through.
func (s *Session) flushLocalCandidates(pc *webrtc.PeerConnection) {
	s.mu.Lock()
	if s.pc != pc {
		s.mu.Unlock()
		return
	}
	unsent := s.unsent
	s.unsent = nil
	s.signalSent = true
	s.mu.Unlock()

	for _, c := range unsent {
		s.emitCandidate(c)
	}
}

func (s *Session) emitCandidate(c webrtc.ICECandidateInit) {
	if err := s.signaler.Emit(protocol.WebRTCICECandidate{RoomID: s.room, Candidate: toProtoCandidate(c)}); err != nil {
		slog.Debug("failed to emit ice candidate", "room", s.room, "error", err)
	}
}

func (s *Session) applyPendingLocked() {
	for _, c := range s.pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			slog.Debug("dropping buffered ice candidate", "room", s.room, "error", err)
		}
	}
	s.pending = nil
}

// setState must be called with s.mu held. The callback runs on its own
// goroutine so it may call back into the session.
func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	slog.Debug("media session state", "room", s.room, "from", s.state, "to", next)
	s.state = next
	if next == StateConnected && s.connected != nil {
		close(s.connected)
		s.connected = nil
	}
	if fn := s.onState; fn != nil {
		go fn(next)
	}
}

func toProtoDescription(d webrtc.SessionDescription) protocol.SessionDescription {
	return protocol.SessionDescription{Type: d.Type.String(), SDP: d.SDP}
}

func fromProtoDescription(d protocol.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}

func toProtoCandidate(c webrtc.ICECandidateInit) protocol.ICECandidateInit {
	return protocol.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromProtoCandidate(c protocol.ICECandidateInit) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
