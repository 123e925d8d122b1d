package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type TranslationLineEvent struct {
	Event
	ID       string `json:"id"`
	Text     string `json:"text"`
	Original string `json:"original"`
	IsError  bool   `json:"is_error"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type SessionEndedEvent struct {
	Event
	SessionID       string   `json:"session_id"`
	HadContent      bool     `json:"had_content"`
	TranscriptPaths []string `json:"transcript_paths,omitempty"`
}

type StatusChangedEvent struct {
	Event
	Status string `json:"status"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
