package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lingorelay/lingo-relay/internal/metrics"
	"github.com/lingorelay/lingo-relay/internal/storage"
	"github.com/lingorelay/lingo-relay/internal/transcribe"
	"github.com/lingorelay/lingo-relay/internal/translate"
)

// PlaceholderCredential is the unconfigured default; treated identically to
// an absent key.
const PlaceholderCredential = "changeme"

// errCancelled marks a start sequence aborted by a concurrent Stop. It is
// never surfaced to the user.
var errCancelled = errors.New("session start cancelled")

// Deps wires the controller to its collaborators. Factories produce fresh
// single-session instances; none are reused across sessions.
type Deps struct {
	NewMixer      func() Mixer
	NewSegmenter  func(language string) Segmenter
	NewTranslator func() (translate.Translator, error)
	NewSink       func(dir, name string, langs ...string) (Sink, error)
	Credentials   func() Credentials
	Store         HistoryStore

	OnStatus         func(Status)
	OnLine           func(Line)
	OnSessionStarted func(sessionID string)
	OnSessionEnded   func(sessionID string, hadContent bool, transcriptPaths []string)

	ChunkInterval time.Duration
	SettleDelay   time.Duration
	TranslateWait time.Duration
}

// Controller is the orchestrating state machine for one recording session.
// It is the sole mutator of lifecycle state and the only component with
// cross-cutting lifecycle authority.
type Controller struct {
	deps Deps
	log  zerolog.Logger

	mu         sync.Mutex
	state      State
	stopping   bool
	hasContent bool
	lastErr    error

	sessionID  string
	direction  translate.Direction
	srcLang    string
	tgtLang    string
	mixer      Mixer
	seg        Segmenter
	translator translate.Translator
	sink       Sink
}

func NewController(deps Deps, log zerolog.Logger) *Controller {
	if deps.ChunkInterval <= 0 {
		deps.ChunkInterval = 100 * time.Millisecond
	}
	if deps.SettleDelay <= 0 {
		deps.SettleDelay = 250 * time.Millisecond
	}
	if deps.TranslateWait <= 0 {
		deps.TranslateWait = 15 * time.Second
	}
	return &Controller{
		deps:  deps,
		log:   log.With().Str("component", "session").Logger(),
		state: StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error attached while idle, if any. Cleared on the
// next start attempt.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start runs the session start sequence. On any failure it runs full cleanup
// before returning the error; a user-initiated Stop during the sequence
// aborts quietly with a nil error.
func (c *Controller) Start(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.state = StateInitializing
	c.stopping = false
	c.hasContent = false
	c.lastErr = nil
	c.mu.Unlock()

	err := c.run(ctx, cfg)
	if err != nil {
		c.teardown(false)
		c.setState(StateIdle)
		// A concurrent Stop makes in-flight resource acquisition fail in
		// arbitrary ways (the segmenter's handshake aborts, the context is
		// cancelled). Whatever the surface error, a user-initiated stop is
		// not reported as a failure.
		if errors.Is(err, errCancelled) || c.cancelled() {
			c.notifyStatus(StatusReady)
			return nil
		}
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.notifyStatus(StatusError)
		return err
	}

	// Stop may have completed after run's last cancellation check; the
	// transition to recording must re-verify under the lock or the torn-down
	// session would present as live.
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		c.teardown(false)
		c.setState(StateIdle)
		c.notifyStatus(StatusReady)
		return nil
	}
	c.state = StateRecording
	c.mu.Unlock()
	c.notifyStatus(StatusListening)
	c.log.Info().Str("session", c.currentSessionID()).Str("direction", string(cfg.Direction)).Msg("recording")
	return nil
}

func (c *Controller) run(ctx context.Context, cfg Config) error {
	// Step 1: validate before touching any resource.
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return &ValidationError{Field: "output location"}
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return &ValidationError{Field: "session name"}
	}
	src, tgt, err := cfg.Direction.Codes()
	if err != nil {
		return err
	}

	// Step 2: transcript files first; failure aborts before audio or network.
	sink, err := c.deps.NewSink(cfg.OutputDir, cfg.Name, src, tgt)
	if err != nil {
		return fmt.Errorf("create transcript files: %w", err)
	}

	c.mu.Lock()
	c.sink = sink
	c.direction = cfg.Direction
	c.srcLang = src
	c.tgtLang = tgt
	c.mu.Unlock()

	// Step 3: audio graph.
	mixer := c.deps.NewMixer()
	c.mu.Lock()
	c.mixer = mixer
	c.mu.Unlock()

	if err := mixer.Initialize(); err != nil {
		return err
	}
	if err := mixer.ConnectPrimary(cfg.PrimaryDevice); err != nil {
		return err
	}
	if cfg.SecondaryDevice != "" {
		if err := mixer.ConnectSecondary(cfg.SecondaryDevice); err != nil {
			return err
		}
	}
	if c.cancelled() {
		return errCancelled
	}

	// Step 4: credentials, precisely typed so the UI can guide remediation.
	creds := c.deps.Credentials()
	if isUnset(creds.Recognition) {
		return &CredentialError{Name: "recognition"}
	}
	if isUnset(creds.Translation) {
		return &CredentialError{Name: "translation"}
	}

	// Step 5: segmenter and translator, wired to the per-utterance pipeline.
	seg := c.deps.NewSegmenter(src)
	translator, err := c.deps.NewTranslator()
	if err != nil {
		return fmt.Errorf("create translator: %w", err)
	}

	c.mu.Lock()
	c.seg = seg
	c.translator = translator
	c.mu.Unlock()

	seg.OnStatus(c.handleSegmenterStatus)
	seg.OnUtterance(c.handleUtterance)
	seg.OnError(func(err error) {
		c.log.Error().Err(err).Msg("recognition failure")
		c.mu.Lock()
		c.lastErr = err
		stopping := c.stopping
		c.mu.Unlock()
		if !stopping {
			c.notifyStatus(StatusError)
		}
	})

	// Step 7: open the connection, settle, arm, start audio, verify translation.
	if err := seg.Connect(ctx); err != nil {
		return err
	}
	if c.cancelled() {
		return errCancelled
	}

	select {
	case <-time.After(c.deps.SettleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.cancelled() {
		return errCancelled
	}

	seg.StartRecording()
	if err := mixer.StartEncoding(seg.SendAudio, c.deps.ChunkInterval, seg.Connected); err != nil {
		return err
	}

	verifyCtx, cancel := context.WithTimeout(ctx, c.deps.TranslateWait)
	defer cancel()
	if err := translator.VerifyReachable(verifyCtx, cfg.Direction); err != nil {
		return err
	}
	if c.cancelled() {
		return errCancelled
	}

	sessionID := uuid.NewString()
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()

	if c.deps.Store != nil {
		if err := c.deps.Store.CreateSession(sessionID, cfg.Name, string(cfg.Direction), time.Now().UTC()); err != nil {
			c.log.Warn().Err(err).Msg("history store create failed")
		}
	}
	if c.deps.OnSessionStarted != nil {
		c.deps.OnSessionStarted(sessionID)
	}
	return nil
}

// Stop tears the session down cleanly. The stopping flag is set first so the
// segmenter's disconnect callback, which fires during the teardown it
// triggers, is not mis-reported as an error. Returns whether any content was
// produced.
func (c *Controller) Stop() (bool, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return false, nil
	}
	c.stopping = true
	c.state = StateStopping
	hadContent := c.hasContent
	c.mu.Unlock()

	c.teardown(hadContent)
	c.setState(StateIdle)
	c.notifyStatus(StatusReady)
	return hadContent, nil
}

// teardown releases every acquired resource. Idempotent and tolerant of
// partial initialization.
func (c *Controller) teardown(keepFiles bool) {
	c.mu.Lock()
	seg := c.seg
	mixer := c.mixer
	sink := c.sink
	sessionID := c.sessionID
	c.seg = nil
	c.mixer = nil
	c.sink = nil
	c.translator = nil
	c.sessionID = ""
	c.mu.Unlock()

	if seg != nil {
		seg.Stop()
	}
	if mixer != nil {
		mixer.Cleanup()
	}

	var paths []string
	if sink != nil {
		if keepFiles {
			paths = sink.Paths()
			if err := sink.CloseFiles(); err != nil {
				c.log.Warn().Err(err).Msg("close transcript files failed")
			}
		} else {
			if err := sink.Discard(); err != nil {
				c.log.Warn().Err(err).Msg("discard transcript files failed")
			}
		}
	}

	if sessionID != "" {
		if c.deps.Store != nil {
			if err := c.deps.Store.EndSession(sessionID, time.Now().UTC()); err != nil {
				c.log.Warn().Err(err).Msg("history store end failed")
			}
		}
		if c.deps.OnSessionEnded != nil {
			c.deps.OnSessionEnded(sessionID, keepFiles, paths)
		}
	}
}

// handleUtterance is the per-utterance pipeline: translate, notify, append.
// A failed translation still produces a visible error-tagged line and never
// tears down the session.
func (c *Controller) handleUtterance(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	translator := c.translator
	sink := c.sink
	dir := c.direction
	src, tgt := c.srcLang, c.tgtLang
	sessionID := c.sessionID
	stopping := c.stopping
	c.mu.Unlock()

	if stopping || translator == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.deps.TranslateWait)
	defer cancel()

	line := Line{ID: uuid.NewString(), Original: text, CreatedAt: time.Now().UTC()}

	translated, err := translator.Translate(ctx, text, dir)
	if err != nil {
		metrics.TranslationFailed()
		c.log.Warn().Err(err).Str("text", text).Msg("translation failed")
		line.IsError = true
		c.notifyLine(line)
		c.storeLine(sessionID, line)
		return
	}
	if translated == "" {
		return
	}

	metrics.TranslationOK()
	line.Text = translated

	c.mu.Lock()
	c.hasContent = true
	c.mu.Unlock()

	c.notifyLine(line)

	// Two independent best-effort appends; the second's failure must not
	// roll back or block the first.
	if sink != nil {
		if err := sink.Append(src, text); err != nil {
			c.log.Warn().Err(err).Str("lang", src).Msg("transcript append failed")
		}
		if err := sink.Append(tgt, translated); err != nil {
			c.log.Warn().Err(err).Str("lang", tgt).Msg("transcript append failed")
		}
	}
	c.storeLine(sessionID, line)
}

func (c *Controller) handleSegmenterStatus(st transcribe.Status) {
	c.mu.Lock()
	stopping := c.stopping
	state := c.state
	c.mu.Unlock()

	switch st {
	case transcribe.StatusConnecting:
		c.notifyStatus(StatusConnecting)
	case transcribe.StatusConnected:
		c.notifyStatus(StatusListening)
	case transcribe.StatusReconnecting:
		c.notifyStatus(StatusReconnecting)
	case transcribe.StatusDisconnected:
		// Disconnects during an intentional stop are not errors.
		if !stopping && state == StateRecording {
			c.notifyStatus(StatusError)
		}
	case transcribe.StatusStopped:
	}
}

func (c *Controller) storeLine(sessionID string, line Line) {
	if c.deps.Store == nil || sessionID == "" {
		return
	}
	err := c.deps.Store.AppendLine(storage.Line{
		ID:         line.ID,
		SessionID:  sessionID,
		SourceText: line.Original,
		Translated: line.Text,
		IsError:    line.IsError,
		CreatedAt:  line.CreatedAt,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("history store append failed")
	}
}

func (c *Controller) cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *Controller) currentSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) notifyStatus(status Status) {
	if c.deps.OnStatus != nil {
		c.deps.OnStatus(status)
	}
}

func (c *Controller) notifyLine(line Line) {
	if c.deps.OnLine != nil {
		c.deps.OnLine(line)
	}
}

func isUnset(key string) bool {
	key = strings.TrimSpace(key)
	return key == "" || key == PlaceholderCredential
}
