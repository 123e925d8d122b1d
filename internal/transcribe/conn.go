package transcribe

import (
	"context"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// newDeepgramConn opens a live transcription client configured for the
// session's source language. Smart formatting and punctuation are enabled;
// utterance-end and VAD events are requested so the provider emits explicit
// boundary signals.
func newDeepgramConn(ctx context.Context, cfg Config, handler api.LiveMessageCallback) (liveConn, error) {
	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          "nova-2",
		Language:       cfg.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		SampleRate:     cfg.SampleRate,
		Channels:       1,
	}

	return client.NewWSUsingCallback(ctx, cfg.APIKey, cOptions, tOptions, handler)
}
