package asr

import (
	"errors"
	"sync"
	"time"
)

// Utterance is one scripted exchange the mock engine plays back per start.
type Utterance struct {
	Interims   []string
	Text       string
	Confidence float64
}

// MockEngine replays scripted utterances, one per Start, with the same
// notification sequence a real engine produces. It is used for the mock
// daemon mode and for smoke testing the controller end to end.
type MockEngine struct {
	Script []Utterance
	Delay  time.Duration

	mu      sync.Mutex
	params  Params
	handler Handler
	running bool
	next    int
	stop    chan struct{}
	abort   chan struct{}
}

var ErrEngineBusy = errors.New("asr: engine already started")

func NewMockEngine(script []Utterance, delay time.Duration) *MockEngine {
	if len(script) == 0 {
		script = []Utterance{{
			Interims:   []string{"hey", "hey hark"},
			Text:       "hey hark what time is it",
			Confidence: 0.92,
		}}
	}
	return &MockEngine{Script: script, Delay: delay}
}

func (m *MockEngine) Configure(p Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = p
}

func (m *MockEngine) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *MockEngine) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrEngineBusy
	}
	m.running = true
	m.stop = make(chan struct{})
	m.abort = make(chan struct{})
	utt := m.Script[m.next%len(m.Script)]
	m.next++
	params := m.params
	stop, abort := m.stop, m.abort
	m.mu.Unlock()

	go m.play(utt, params, stop, abort)
	return nil
}

func (m *MockEngine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running && m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *MockEngine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running && m.abort != nil {
		close(m.abort)
		m.abort = nil
	}
}

func (m *MockEngine) play(utt Utterance, params Params, stop, abort <-chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.stop = nil
		m.abort = nil
		m.mu.Unlock()
		m.emit(Event{Kind: KindRecognitionEnd})
	}()

	m.emit(Event{Kind: KindRecognitionStart})
	m.emit(Event{Kind: KindAudioStart})
	m.emit(Event{Kind: KindSoundStart})
	m.emit(Event{Kind: KindSpeechStart})

	stopped := func() bool {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}

	if params.InterimResults {
		for _, text := range utt.Interims {
			if stopped() {
				// graceful stop: skip remaining interims, flush the final
				break
			}
			if !m.pause(abort) {
				return
			}
			m.emit(resultEvent(text, 0, false))
		}
	}

	if !m.pause(abort) {
		return
	}
	m.emit(resultEvent(utt.Text, utt.Confidence, true))
	m.emit(Event{Kind: KindSpeechEnd})
	m.emit(Event{Kind: KindSoundEnd})
	m.emit(Event{Kind: KindAudioEnd})
}

// pause waits out the scripted delay, reporting false when aborted.
func (m *MockEngine) pause(abort <-chan struct{}) bool {
	if m.Delay <= 0 {
		select {
		case <-abort:
			return false
		default:
			return true
		}
	}
	select {
	case <-abort:
		return false
	case <-time.After(m.Delay):
		return true
	}
}

func (m *MockEngine) emit(evt Event) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler != nil {
		handler(evt)
	}
}

func resultEvent(text string, confidence float64, final bool) Event {
	return Event{
		Kind:  KindResult,
		Index: 0,
		Results: []Result{{
			Final:        final,
			Alternatives: []Alternative{{Transcript: text, Confidence: confidence}},
		}},
	}
}
