package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/rs/zerolog"
)

func fragment(t *testing.T, text string, isFinal, speechFinal bool) *api.MessageResponse {
	t.Helper()

	raw := map[string]any{
		"is_final":     isFinal,
		"speech_final": speechFinal,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": text}},
		},
	}
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal fragment: %v", err)
	}

	var msg api.MessageResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal fragment: %v", err)
	}
	return &msg
}

type fakeConn struct {
	mu        sync.Mutex
	connectOK bool
	connects  int
	stops     int
	written   [][]byte
	blockConn chan struct{}
}

func (f *fakeConn) Connect() bool {
	f.mu.Lock()
	f.connects++
	ok := f.connectOK
	block := f.blockConn
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return ok
}

func (f *fakeConn) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), p...))
	return len(p), nil
}

type utteranceRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *utteranceRecorder) record(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *utteranceRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func newTestSegmenter(cfg Config) (*Segmenter, *utteranceRecorder) {
	s := NewSegmenter(cfg, zerolog.Nop())
	rec := &utteranceRecorder{}
	s.OnUtterance(rec.record)
	return s, rec
}

func TestBoundaryEventFlushesJoinedFragments(t *testing.T) {
	s, rec := newTestSegmenter(Config{QuietPeriod: time.Hour})

	if err := s.Message(fragment(t, " Hello ", true, false)); err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if err := s.Message(fragment(t, "world", true, false)); err != nil {
		t.Fatalf("Message failed: %v", err)
	}
	if err := s.UtteranceEnd(&api.UtteranceEndResponse{}); err != nil {
		t.Fatalf("UtteranceEnd failed: %v", err)
	}

	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly one utterance, got %d", len(got))
	}
	if got[0] != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", got[0])
	}
}

func TestSpeechFinalFlushesImmediately(t *testing.T) {
	s, rec := newTestSegmenter(Config{QuietPeriod: time.Hour})

	if err := s.Message(fragment(t, "Hello.", true, true)); err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	got := rec.snapshot()
	if len(got) != 1 || got[0] != "Hello." {
		t.Fatalf("expected one utterance %q, got %v", "Hello.", got)
	}
}

func TestInterimFragmentsNeverAccumulated(t *testing.T) {
	s, rec := newTestSegmenter(Config{QuietPeriod: time.Hour})

	_ = s.Message(fragment(t, "partial guess", false, false))
	_ = s.Message(fragment(t, "One", true, false))
	_ = s.Message(fragment(t, "another guess", false, false))
	_ = s.UtteranceEnd(&api.UtteranceEndResponse{})

	got := rec.snapshot()
	if len(got) != 1 || got[0] != "One" {
		t.Fatalf("expected [One], got %v", got)
	}
}

func TestQuietTimerFallbackFlushesExactlyOnce(t *testing.T) {
	s, rec := newTestSegmenter(Config{QuietPeriod: 20 * time.Millisecond})

	_ = s.Message(fragment(t, "One", true, false))
	_ = s.Message(fragment(t, "Two", true, false))

	time.Sleep(100 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly one fallback flush, got %d", len(got))
	}
	if got[0] != "One Two" {
		t.Errorf("expected %q, got %q", "One Two", got[0])
	}
}

func TestEmptyFlushIsNoOp(t *testing.T) {
	s, rec := newTestSegmenter(Config{QuietPeriod: time.Hour})

	_ = s.UtteranceEnd(&api.UtteranceEndResponse{})
	_ = s.UtteranceEnd(&api.UtteranceEndResponse{})
	_ = s.Message(fragment(t, "   ", true, false))
	_ = s.UtteranceEnd(&api.UtteranceEndResponse{})

	got := rec.snapshot()
	if len(got) != 0 {
		t.Fatalf("expected no utterances, got %v", got)
	}
}

func TestBoundaryThenQuietTimerDoesNotDoubleFlush(t *testing.T) {
	s, rec := newTestSegmenter(Config{QuietPeriod: 20 * time.Millisecond})

	_ = s.Message(fragment(t, "Hello", true, false))
	_ = s.UtteranceEnd(&api.UtteranceEndResponse{})

	time.Sleep(60 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one utterance, got %d", len(got))
	}
}

func TestSendAudioDropsWhileDisconnected(t *testing.T) {
	conn := &fakeConn{connectOK: true}
	s, _ := newTestSegmenter(Config{})
	s.dial = func(context.Context, Config, api.LiveMessageCallback) (liveConn, error) {
		return conn, nil
	}

	s.SendAudio([]byte{1, 2, 3})
	if len(conn.written) != 0 {
		t.Fatal("expected chunk to be dropped before connect")
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	s.SendAudio([]byte{4, 5, 6})
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.written) != 1 {
		t.Fatalf("expected one written chunk, got %d", len(conn.written))
	}
}

func TestConnectTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	conn := &fakeConn{connectOK: true, blockConn: block}

	s, _ := newTestSegmenter(Config{ConnectTimeout: 30 * time.Millisecond})
	s.dial = func(context.Context, Config, api.LiveMessageCallback) (liveConn, error) {
		return conn, nil
	}

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.stops == 0 {
		t.Error("expected the timed-out attempt to be aborted")
	}
}

func TestReconnectExhaustionSurfacesTerminalError(t *testing.T) {
	conn := &fakeConn{connectOK: false}
	s, _ := newTestSegmenter(Config{MaxReconnects: 2, ReconnectBackoff: time.Millisecond})
	s.dial = func(context.Context, Config, api.LiveMessageCallback) (liveConn, error) {
		return conn, nil
	}

	var mu sync.Mutex
	var statuses []Status
	var errs []error
	s.OnStatus(func(st Status) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	})
	s.OnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	var slept []time.Duration
	s.sleep = func(d time.Duration) {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
	}

	s.StartRecording()
	_ = s.Close(&api.CloseResponse{})

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := len(errs) > 0
		mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(errs) != 1 || !errors.Is(errs[0], ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", errs)
	}

	reconnecting := 0
	for _, st := range statuses {
		if st == StatusReconnecting {
			reconnecting++
		}
	}
	if reconnecting != 2 {
		t.Errorf("expected 2 reconnecting statuses, got %d (%v)", reconnecting, statuses)
	}

	if len(slept) != 2 || slept[0] != time.Millisecond || slept[1] != 2*time.Millisecond {
		t.Errorf("expected exponential backoff [1ms 2ms], got %v", slept)
	}

	conn.mu.Lock()
	connects := conn.connects
	conn.mu.Unlock()
	if connects != 2 {
		t.Errorf("expected 2 connect attempts, got %d", connects)
	}
}

func TestStopDoesNotTriggerReconnect(t *testing.T) {
	conn := &fakeConn{connectOK: true}
	s, _ := newTestSegmenter(Config{ReconnectBackoff: time.Millisecond})
	s.dial = func(context.Context, Config, api.LiveMessageCallback) (liveConn, error) {
		return conn, nil
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	s.StartRecording()

	var mu sync.Mutex
	var statuses []Status
	s.OnStatus(func(st Status) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	})

	s.Stop()
	// The close event the shutdown triggers must not be treated as a failure.
	_ = s.Close(&api.CloseResponse{})

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, st := range statuses {
		if st == StatusReconnecting {
			t.Fatal("stop must not trigger reconnection")
		}
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.stops == 0 {
		t.Error("expected clean close to stop the connection")
	}
}

func TestStopDiscardsPendingUtterance(t *testing.T) {
	s, rec := newTestSegmenter(Config{QuietPeriod: 20 * time.Millisecond})

	_ = s.Message(fragment(t, "half finished", true, false))
	s.Stop()

	time.Sleep(60 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected pending state destroyed on stop, got %v", got)
	}
}
