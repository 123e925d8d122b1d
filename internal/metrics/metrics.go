package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UtterancesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lingorelay_utterances_flushed_total",
		Help: "Finalized utterances emitted by the segmenter.",
	})

	Translations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lingorelay_translations_total",
		Help: "Translation calls by outcome.",
	}, []string{"status"})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lingorelay_reconnect_attempts_total",
		Help: "Recognition connection reconnect attempts.",
	})

	AudioChunksSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lingorelay_audio_chunks_sent_total",
		Help: "Encoded audio chunks forwarded to the recognizer.",
	})

	AudioChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lingorelay_audio_chunks_dropped_total",
		Help: "Audio chunks dropped while the recognizer was disconnected.",
	})
)

// TranslationOK and TranslationFailed record one translation outcome each.
func TranslationOK()     { Translations.WithLabelValues("ok").Inc() }
func TranslationFailed() { Translations.WithLabelValues("error").Inc() }
