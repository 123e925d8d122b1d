package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/lingorelay/lingo-relay/internal/metrics"
)

const (
	// DefaultSampleRate is the fixed capture rate for speech recognition.
	DefaultSampleRate = 16000
	// DefaultChunkInterval balances end-to-end latency against message rate.
	DefaultChunkInterval = 100 * time.Millisecond

	defaultFramesPerBuffer = 1600 // 100ms at 16kHz
)

// codecPreference is the preference-ordered list of supported chunk encodings.
var codecPreference = []string{"linear16"}

var supportedCodecs = map[string]bool{
	"linear16": true,
}

// Mixer owns the audio graph for one session: one or two capture devices
// mixed into a single PCM16-LE stream, with periodic encoded chunk emission.
// Never reused across sessions.
type Mixer struct {
	log zerolog.Logger

	mu          sync.Mutex
	sampleRate  int
	frames      int
	initialized bool
	cleaned     bool
	primary     captureStream
	secondary   captureStream
	stopCh      chan struct{}
	wg          sync.WaitGroup

	openInput func(deviceID string, sampleRate, frames int) (captureStream, error)
	initHost  func() error
	termHost  func()
}

func NewMixer(sampleRate int, log zerolog.Logger) *Mixer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Mixer{
		log:        log.With().Str("component", "mixer").Logger(),
		sampleRate: sampleRate,
		frames:     sampleRate / 10,
		openInput:  openPortAudioInput,
		initHost:   portaudio.Initialize,
		termHost:   func() { _ = portaudio.Terminate() },
	}
}

// Initialize creates the underlying audio-processing context. Must be called
// exactly once per session before any stream is connected.
func (m *Mixer) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cleaned {
		return ErrCleanedUp
	}
	if m.initialized {
		return nil
	}
	if err := m.initHost(); err != nil {
		return &InitError{Err: err}
	}
	m.initialized = true
	return nil
}

// ConnectPrimary acquires the microphone device and routes it into the mix.
// Failure here is fatal to session start.
func (m *Mixer) ConnectPrimary(deviceID string) error {
	stream, err := m.connect(deviceID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.primary = stream
	m.mu.Unlock()
	return nil
}

// ConnectSecondary acquires the optional second source. Absence is valid;
// callers simply skip this.
func (m *Mixer) ConnectSecondary(deviceID string) error {
	stream, err := m.connect(deviceID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.secondary = stream
	m.mu.Unlock()
	return nil
}

func (m *Mixer) connect(deviceID string) (captureStream, error) {
	m.mu.Lock()
	if m.cleaned {
		m.mu.Unlock()
		return nil, ErrCleanedUp
	}
	if !m.initialized {
		m.mu.Unlock()
		return nil, ErrNotInitialized
	}
	sampleRate, frames := m.sampleRate, m.frames
	m.mu.Unlock()

	stream, err := m.openInput(deviceID, sampleRate, frames)
	if err != nil {
		return nil, &DeviceError{Device: deviceID, Err: err}
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, &DeviceError{Device: deviceID, Err: err}
	}
	return stream, nil
}

// Stream is the single combined output of the mix.
type Stream struct {
	m *Mixer
}

// MixedStream returns the combined stream. It exists iff the primary source
// is connected.
func (m *Mixer) MixedStream() (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cleaned {
		return nil, ErrCleanedUp
	}
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.primary == nil {
		return nil, fmt.Errorf("primary source not connected")
	}
	return &Stream{m: m}, nil
}

// ReadFrame blocks for one frame buffer from each connected source and
// returns the mixed samples.
func (s *Stream) ReadFrame() ([]int16, error) {
	s.m.mu.Lock()
	primary, secondary := s.m.primary, s.m.secondary
	s.m.mu.Unlock()

	if primary == nil {
		return nil, ErrNotInitialized
	}

	if err := primary.Read(); err != nil {
		return nil, fmt.Errorf("read primary: %w", err)
	}
	mixed := append([]int16(nil), primary.Samples()...)

	if secondary != nil {
		if err := secondary.Read(); err != nil {
			return nil, fmt.Errorf("read secondary: %w", err)
		}
		mixInto(mixed, secondary.Samples())
	}
	return mixed, nil
}

// mixInto sums b into dst with int16 saturation.
func mixInto(dst, b []int16) {
	n := len(dst)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum := int32(dst[i]) + int32(b[i])
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		dst[i] = int16(sum)
	}
}

// selectCodec picks the best available encoding from the preference list.
func selectCodec() (string, error) {
	for _, codec := range codecPreference {
		if supportedCodecs[codec] {
			return codec, nil
		}
	}
	return "", ErrNoSupportedCodec
}

// StartEncoding begins producing binary-encoded chunks from the mixed stream
// at the given interval. Chunks are delivered only while connected() reports
// true; the recognizer has no use for audio it cannot receive in near-real-time,
// so chunks produced while disconnected are dropped, not buffered.
func (m *Mixer) StartEncoding(onChunk func([]byte), interval time.Duration, connected func() bool) error {
	if _, err := selectCodec(); err != nil {
		return err
	}
	if interval <= 0 {
		interval = DefaultChunkInterval
	}

	stream, err := m.MixedStream()
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return fmt.Errorf("encoding already started")
	}
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.mu.Unlock()

	frames := make(chan []int16, 8)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		defer close(frames)
		for {
			select {
			case <-stopCh:
				return
			default:
			}
			frame, err := stream.ReadFrame()
			if err != nil {
				select {
				case <-stopCh:
				default:
					m.log.Warn().Err(err).Msg("mixed stream read failed")
				}
				return
			}
			select {
			case frames <- frame:
			case <-stopCh:
				return
			}
		}
	}()

	go func() {
		defer m.wg.Done()

		var pending bytes.Buffer
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				_ = binary.Write(&pending, binary.LittleEndian, frame)
			case <-ticker.C:
				if pending.Len() == 0 {
					continue
				}
				chunk := append([]byte(nil), pending.Bytes()...)
				pending.Reset()
				if connected == nil || connected() {
					metrics.AudioChunksSent.Inc()
					onChunk(chunk)
				} else {
					metrics.AudioChunksDropped.Inc()
				}
			}
		}
	}()

	return nil
}

// Cleanup disconnects and releases every node, stops every device track, and
// closes the audio context. Safe to call multiple times and from any state.
func (m *Mixer) Cleanup() {
	m.mu.Lock()
	if m.cleaned {
		m.mu.Unlock()
		return
	}
	m.cleaned = true

	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	primary, secondary := m.primary, m.secondary
	m.primary = nil
	m.secondary = nil
	initialized := m.initialized
	m.initialized = false
	m.mu.Unlock()

	if primary != nil {
		_ = primary.Close()
	}
	if secondary != nil {
		_ = secondary.Close()
	}

	m.wg.Wait()

	if initialized {
		m.termHost()
	}
}
