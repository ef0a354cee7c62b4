package stt

import "context"

// Provider transcribes one finalized audio chunk. The returned confidence is
// the recognizer's own [0,1] score and feeds speaker attribution downstream.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}
