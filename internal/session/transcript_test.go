package session

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func entry(text string, confidence float64) TranscriptEntry {
	return TranscriptEntry{
		ID:         "e-" + text,
		Speaker:    SpeakerPatient,
		Text:       text,
		Confidence: confidence,
		CapturedAt: time.Now().UTC(),
	}
}

func TestTranscriptBufferAppend(t *testing.T) {
	b := NewTranscriptBuffer()

	for i := 0; i < 3; i++ {
		idx, err := b.Append(entry(fmt.Sprintf("segment %d", i), 0.9))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if idx != i {
			t.Errorf("Append returned index %d, want %d", idx, i)
		}
	}
	if b.Len() != 3 {
		t.Errorf("Len = %d, want 3", b.Len())
	}
}

func TestTranscriptBufferRejectsInvalid(t *testing.T) {
	b := NewTranscriptBuffer()

	cases := []struct {
		name string
		e    TranscriptEntry
	}{
		{"empty text", entry("", 0.9)},
		{"whitespace text", entry("   ", 0.9)},
		{"negative confidence", entry("hello", -0.1)},
		{"confidence above one", entry("hello", 1.2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := b.Append(tc.e); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Append(%s) err = %v, want ErrInvalidEntry", tc.name, err)
			}
		})
	}
	if b.Len() != 0 {
		t.Errorf("rejected entries must not be stored, Len = %d", b.Len())
	}

	// boundary confidences are valid
	if _, err := b.Append(entry("zero", 0)); err != nil {
		t.Errorf("confidence 0 rejected: %v", err)
	}
	if _, err := b.Append(entry("one", 1)); err != nil {
		t.Errorf("confidence 1 rejected: %v", err)
	}
}

func TestTranscriptBufferTail(t *testing.T) {
	b := NewTranscriptBuffer()
	for i := 0; i < 7; i++ {
		if _, err := b.Append(entry(fmt.Sprintf("s%d", i), 0.9)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	tail := b.Tail(5)
	if len(tail) != 5 {
		t.Fatalf("Tail(5) returned %d entries", len(tail))
	}
	if tail[0].Text != "s2" || tail[4].Text != "s6" {
		t.Errorf("Tail(5) = [%s..%s], want [s2..s6]", tail[0].Text, tail[4].Text)
	}

	if got := b.Tail(100); len(got) != 7 {
		t.Errorf("Tail larger than buffer returned %d entries, want 7", len(got))
	}
	if got := b.Tail(0); got != nil {
		t.Errorf("Tail(0) = %v, want nil", got)
	}
}

func TestTranscriptBufferAllReturnsCopy(t *testing.T) {
	b := NewTranscriptBuffer()
	if _, err := b.Append(entry("original", 0.9)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	all := b.All()
	all[0].Text = "mutated"

	if got := b.All()[0].Text; got != "original" {
		t.Errorf("buffer entry mutated through All() copy: %q", got)
	}
}

func TestRenderLines(t *testing.T) {
	entries := []TranscriptEntry{
		{Speaker: SpeakerDoctor, Text: "How long have you had the cough?"},
		{Speaker: SpeakerPatient, Text: "About two weeks."},
	}
	want := "doctor: How long have you had the cough?\npatient: About two weeks."
	if got := RenderLines(entries); got != want {
		t.Errorf("RenderLines = %q, want %q", got, want)
	}
	if got := RenderLines(nil); got != "" {
		t.Errorf("RenderLines(nil) = %q, want empty", got)
	}
}
