package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/rs/zerolog"

	"github.com/lingorelay/lingo-relay/internal/metrics"
)

// Status is the segmenter's connection state, observed by the session layer.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusStopped      Status = "stopped"
)

var (
	// ErrConnectFailed is returned when the recognition handshake is refused.
	ErrConnectFailed = errors.New("recognition connection failed")
	// ErrConnectTimeout is returned when the handshake exceeds the bounded wait.
	ErrConnectTimeout = errors.New("recognition connection timed out")
	// ErrReconnectExhausted is surfaced through the error callback once the
	// reconnection budget runs out. It is terminal for the session.
	ErrReconnectExhausted = errors.New("recognition reconnect attempts exhausted")
)

// Config holds segmenter tunables. Zero values are replaced with production
// defaults by NewSegmenter.
type Config struct {
	APIKey           string
	Language         string
	SampleRate       int
	QuietPeriod      time.Duration
	ConnectTimeout   time.Duration
	MaxReconnects    int
	ReconnectBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = 1500 * time.Millisecond
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 2
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = time.Second
	}
}

// liveConn is the slice of the Deepgram websocket client the segmenter uses.
type liveConn interface {
	Connect() bool
	Stop()
	Write(p []byte) (int, error)
}

type dialFunc func(ctx context.Context, cfg Config, handler api.LiveMessageCallback) (liveConn, error)

// Segmenter owns the streaming recognition connection and turns provider
// events into finalized utterance strings. A Segmenter is single-use: once
// stopped it cannot be restarted.
type Segmenter struct {
	cfg Config
	log zerolog.Logger

	dial  dialFunc
	sleep func(time.Duration)

	mu         sync.Mutex
	conn       liveConn
	connCtx    context.Context
	pending    string
	quietTimer *time.Timer
	connected  bool
	recording  bool
	stopping   bool

	onUtterance func(string)
	onStatus    func(Status)
	onError     func(error)
}

func NewSegmenter(cfg Config, log zerolog.Logger) *Segmenter {
	cfg.applyDefaults()
	return &Segmenter{
		cfg:   cfg,
		log:   log.With().Str("component", "segmenter").Logger(),
		dial:  newDeepgramConn,
		sleep: time.Sleep,
	}
}

// OnUtterance registers the consumer for finalized utterances. Exactly one
// subscriber per session.
func (s *Segmenter) OnUtterance(cb func(text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUtterance = cb
}

func (s *Segmenter) OnStatus(cb func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = cb
}

func (s *Segmenter) OnError(cb func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = cb
}

// Connect opens the recognition connection. It resolves once the handshake
// completes, or fails after the configured bounded wait.
func (s *Segmenter) Connect(ctx context.Context) error {
	s.setStatus(StatusConnecting)

	conn, err := s.dial(ctx, s.cfg, s)
	if err != nil {
		return fmt.Errorf("create recognition client: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connCtx = ctx
	s.mu.Unlock()

	done := make(chan bool, 1)
	go func() { done <- conn.Connect() }()

	timer := time.NewTimer(s.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case ok := <-done:
		if !ok {
			return ErrConnectFailed
		}
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
		s.setStatus(StatusConnected)
		return nil
	case <-timer.C:
		conn.Stop()
		return ErrConnectTimeout
	case <-ctx.Done():
		conn.Stop()
		return ctx.Err()
	}
}

// Connected reports whether the connection is currently open. The mixer gates
// chunk delivery on this.
func (s *Segmenter) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SendAudio forwards one binary chunk. Chunks sent while disconnected are
// dropped; stale audio is useless to the recognizer.
func (s *Segmenter) SendAudio(chunk []byte) {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if !connected || conn == nil {
		return
	}
	if _, err := conn.Write(chunk); err != nil {
		s.log.Warn().Err(err).Msg("audio write failed")
	}
}

// StartRecording arms the reconnection path: from here on, an unexpected
// close triggers automatic reconnect attempts.
func (s *Segmenter) StartRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = true
}

// Stop is the clean shutdown path. It signals end-of-stream, closes the
// connection normally, and never triggers reconnection.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.recording = false
	s.pending = ""
	if s.quietTimer != nil {
		s.quietTimer.Stop()
		s.quietTimer = nil
	}
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		conn.Stop()
	}
	s.setStatus(StatusStopped)
}

// Message classifies one recognized-fragment event. Interim results are
// observed but never accumulated; final fragments join the pending utterance
// and re-arm the quiet timer. A speech-final fragment flushes immediately.
func (s *Segmenter) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	text := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if text == "" {
		return nil
	}

	if !mr.IsFinal {
		return nil
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	if s.pending == "" {
		s.pending = text
	} else {
		s.pending += " " + text
	}
	s.armQuietTimerLocked()
	s.mu.Unlock()

	if mr.SpeechFinal {
		s.flush()
	}
	return nil
}

// UtteranceEnd is the provider's explicit utterance-boundary signal.
func (s *Segmenter) UtteranceEnd(_ *api.UtteranceEndResponse) error {
	s.flush()
	return nil
}

func (s *Segmenter) Open(_ *api.OpenResponse) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	s.log.Info().Msg("recognition connection open")
	return nil
}

func (s *Segmenter) Close(_ *api.CloseResponse) error {
	s.mu.Lock()
	s.connected = false
	recording := s.recording
	stopping := s.stopping
	s.mu.Unlock()

	if stopping || !recording {
		s.setStatus(StatusDisconnected)
		return nil
	}

	s.log.Warn().Msg("recognition connection lost, reconnecting")
	go s.reconnect()
	return nil
}

func (s *Segmenter) Error(er *api.ErrorResponse) error {
	s.log.Error().Str("code", er.ErrCode).Str("description", er.Description).Msg("recognition error")
	return nil
}

func (s *Segmenter) Metadata(_ *api.MetadataResponse) error           { return nil }
func (s *Segmenter) SpeechStarted(_ *api.SpeechStartedResponse) error { return nil }
func (s *Segmenter) UnhandledEvent(_ []byte) error                    { return nil }

// armQuietTimerLocked (re)arms the fallback flush for the case where the
// provider never emits a boundary event. Caller holds s.mu.
func (s *Segmenter) armQuietTimerLocked() {
	if s.quietTimer != nil {
		s.quietTimer.Stop()
	}
	s.quietTimer = time.AfterFunc(s.cfg.QuietPeriod, s.flush)
}

// flush emits the pending utterance to the consumer and clears state.
// Flushing an empty accumulator is a no-op.
func (s *Segmenter) flush() {
	s.mu.Lock()
	text := s.pending
	s.pending = ""
	if s.quietTimer != nil {
		s.quietTimer.Stop()
		s.quietTimer = nil
	}
	cb := s.onUtterance
	s.mu.Unlock()

	if text == "" || cb == nil {
		return
	}
	metrics.UtterancesFlushed.Inc()
	cb(text)
}

// reconnect runs the bounded reconnection loop after an unexpected close.
func (s *Segmenter) reconnect() {
	backoff := s.cfg.ReconnectBackoff

	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		s.setStatus(StatusReconnecting)
		s.sleep(backoff)
		backoff *= 2

		s.mu.Lock()
		stopping := s.stopping
		ctx := s.connCtx
		s.mu.Unlock()
		if stopping {
			return
		}
		if ctx == nil {
			ctx = context.Background()
		}

		metrics.ReconnectAttempts.Inc()
		conn, err := s.dial(ctx, s.cfg, s)
		if err == nil && conn.Connect() {
			s.mu.Lock()
			s.conn = conn
			s.connected = true
			s.mu.Unlock()
			s.setStatus(StatusConnected)
			s.log.Info().Int("attempt", attempt).Msg("reconnected")
			return
		}
		s.log.Warn().Int("attempt", attempt).Int("max", s.cfg.MaxReconnects).Msg("reconnect attempt failed")
	}

	s.setStatus(StatusDisconnected)
	s.emitError(ErrReconnectExhausted)
}

func (s *Segmenter) setStatus(status Status) {
	s.mu.Lock()
	cb := s.onStatus
	s.mu.Unlock()
	if cb != nil {
		cb(status)
	}
}

func (s *Segmenter) emitError(err error) {
	s.mu.Lock()
	cb := s.onError
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}
