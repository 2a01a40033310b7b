package asr

import (
	"testing"
	"time"
)

// collectEvents runs one scripted utterance to completion and returns the
// events in emission order.
func collectEvents(t *testing.T, m *MockEngine) []Event {
	t.Helper()
	var events []Event
	done := make(chan struct{})
	m.SetHandler(func(evt Event) {
		events = append(events, evt)
		if evt.Kind == KindRecognitionEnd {
			close(done)
		}
	})
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recognition end")
	}
	return events
}

func TestMockEngineSequence(t *testing.T) {
	m := NewMockEngine([]Utterance{{
		Interims:   []string{"turn", "turn on"},
		Text:       "turn on the lights",
		Confidence: 0.9,
	}}, 0)
	m.Configure(Params{InterimResults: true})

	events := collectEvents(t, m)

	want := []Kind{
		KindRecognitionStart,
		KindAudioStart,
		KindSoundStart,
		KindSpeechStart,
		KindResult, // interim "turn"
		KindResult, // interim "turn on"
		KindResult, // final
		KindSpeechEnd,
		KindSoundEnd,
		KindAudioEnd,
		KindRecognitionEnd,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Fatalf("event %d: got %v, want %v", i, events[i].Kind, k)
		}
	}

	final := events[6]
	if !final.Results[0].Final {
		t.Fatal("seventh event should carry the final result")
	}
	if got := final.Results[0].Alternatives[0].Transcript; got != "turn on the lights" {
		t.Fatalf("final transcript: got %q", got)
	}
	if interim := events[4]; interim.Results[0].Final {
		t.Fatal("interim result marked final")
	}
}

func TestMockEngineInterimsSuppressed(t *testing.T) {
	m := NewMockEngine([]Utterance{{
		Interims: []string{"one", "two"},
		Text:     "one two three",
	}}, 0)
	m.Configure(Params{InterimResults: false})

	events := collectEvents(t, m)

	results := 0
	for _, evt := range events {
		if evt.Kind == KindResult {
			results++
		}
	}
	if results != 1 {
		t.Fatalf("got %d results with interims disabled, want 1", results)
	}
}

func TestMockEngineBusy(t *testing.T) {
	m := NewMockEngine(nil, 50*time.Millisecond)
	m.SetHandler(func(Event) {})
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(); err != ErrEngineBusy {
		t.Fatalf("second start: got %v, want ErrEngineBusy", err)
	}
	m.Abort()
}

func TestMockEngineAbort(t *testing.T) {
	m := NewMockEngine([]Utterance{{
		Interims: []string{"partial"},
		Text:     "never delivered",
	}}, 100*time.Millisecond)
	m.Configure(Params{InterimResults: true})

	var events []Event
	done := make(chan struct{})
	m.SetHandler(func(evt Event) {
		events = append(events, evt)
		if evt.Kind == KindRecognitionEnd {
			close(done)
		}
	})
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Abort()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recognition end")
	}

	for _, evt := range events {
		if evt.Kind == KindResult && evt.Results[0].Final {
			t.Fatal("aborted session delivered a final result")
		}
	}
	if events[len(events)-1].Kind != KindRecognitionEnd {
		t.Fatalf("last event: got %v, want RecognitionEnd", events[len(events)-1].Kind)
	}
}

func TestMockEngineScriptCycles(t *testing.T) {
	m := NewMockEngine([]Utterance{
		{Text: "first"},
		{Text: "second"},
	}, 0)
	m.Configure(Params{})

	finals := func(events []Event) string {
		for _, evt := range events {
			if evt.Kind == KindResult && evt.Results[0].Final {
				return evt.Results[0].Alternatives[0].Transcript
			}
		}
		return ""
	}

	if got := finals(collectEvents(t, m)); got != "first" {
		t.Fatalf("first run: got %q", got)
	}
	if got := finals(collectEvents(t, m)); got != "second" {
		t.Fatalf("second run: got %q", got)
	}
	if got := finals(collectEvents(t, m)); got != "first" {
		t.Fatalf("third run should wrap the script, got %q", got)
	}
}
