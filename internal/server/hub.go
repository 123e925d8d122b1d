package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lingorelay/lingo-relay/internal/session"
)

// maxRecentLines bounds the replay window sent to newly connected clients.
const maxRecentLines = 100

type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	recent  [][]byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// RecentLines returns the retained translation line payloads, oldest first,
// for replay to a newly connected client.
func (h *Hub) RecentLines() [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([][]byte, len(h.recent))
	copy(out, h.recent)
	return out
}

func (h *Hub) BroadcastLine(line session.Line) {
	payload, err := json.Marshal(TranslationLineEvent{
		Event:    newEvent("translation_line", line.CreatedAt),
		ID:       line.ID,
		Text:     line.Text,
		Original: line.Original,
		IsError:  line.IsError,
	})
	if err != nil {
		log.Error().Err(err).Msg("event marshal error")
		return
	}

	h.mu.Lock()
	h.recent = append(h.recent, payload)
	if len(h.recent) > maxRecentLines {
		h.recent = h.recent[len(h.recent)-maxRecentLines:]
	}
	h.mu.Unlock()

	h.Broadcast(payload)
}

func (h *Hub) BroadcastSessionStarted(sessionID string) {
	// A new session clears the previous session's replay window.
	h.mu.Lock()
	h.recent = nil
	h.mu.Unlock()

	h.broadcastEvent(SessionStartedEvent{
		Event:     newEvent("session_started", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) BroadcastSessionEnded(sessionID string, hadContent bool, transcriptPaths []string) {
	h.broadcastEvent(SessionEndedEvent{
		Event:           newEvent("session_ended", time.Now().UTC()),
		SessionID:       sessionID,
		HadContent:      hadContent,
		TranscriptPaths: transcriptPaths,
	})
}

func (h *Hub) BroadcastStatus(status session.Status) {
	h.broadcastEvent(StatusChangedEvent{
		Event:  newEvent("status_changed", time.Now().UTC()),
		Status: string(status),
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("event marshal error")
		return
	}
	h.Broadcast(payload)
}
