package tts

import "context"

// Provider renders spoken audio for portal replies and returns a reference
// (URL) to it. Best-effort: callers degrade to text-only.
type Provider interface {
	Synthesize(ctx context.Context, text, voiceID, language string) (audioRef string, err error)
}
