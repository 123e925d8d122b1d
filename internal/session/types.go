package session

import (
	"context"
	"time"

	"github.com/lingorelay/lingo-relay/internal/storage"
	"github.com/lingorelay/lingo-relay/internal/transcribe"
	"github.com/lingorelay/lingo-relay/internal/translate"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRecording    State = "recording"
	StateStopping     State = "stopping"
)

// Status is the user-visible session status.
type Status string

const (
	StatusReady        Status = "ready"
	StatusConnecting   Status = "connecting"
	StatusListening    Status = "listening"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// Line is one immutable rendered/logged unit: a translated utterance, or an
// error marker when the translation call failed.
type Line struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Original  string    `json:"original"`
	IsError   bool      `json:"is_error"`
	CreatedAt time.Time `json:"created_at"`
}

// Config is the user's start request.
type Config struct {
	Direction       translate.Direction
	PrimaryDevice   string
	SecondaryDevice string
	OutputDir       string
	Name            string
}

// Credentials are resolved immediately before a session starts.
type Credentials struct {
	Recognition string
	Translation string
}

// Mixer owns the audio graph for one session.
type Mixer interface {
	Initialize() error
	ConnectPrimary(deviceID string) error
	ConnectSecondary(deviceID string) error
	StartEncoding(onChunk func([]byte), interval time.Duration, connected func() bool) error
	Cleanup()
}

// Segmenter owns the recognition connection and the pending utterance.
type Segmenter interface {
	Connect(ctx context.Context) error
	Connected() bool
	SendAudio(chunk []byte)
	OnUtterance(func(text string))
	OnStatus(func(transcribe.Status))
	OnError(func(error))
	StartRecording()
	Stop()
}

// Sink is the pair of per-language transcript files for one session.
type Sink interface {
	Append(lang, text string) error
	CloseFiles() error
	Discard() error
	Paths() []string
}

// HistoryStore persists sessions and lines. Optional; nil disables history.
type HistoryStore interface {
	CreateSession(id, name, direction string, startedAt time.Time) error
	EndSession(id string, endedAt time.Time) error
	AppendLine(line storage.Line) error
}
