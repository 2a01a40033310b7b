package asr

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/harklabs/hark-core/internal/bus"
	"github.com/harklabs/hark-core/internal/config"
	"github.com/harklabs/hark-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

// StreamEngine feeds audio frames from the bus through a Recognizer and
// exposes the result as native engine notifications. Each start spans one
// utterance: the first frame marked final ends the recognition session.
type StreamEngine struct {
	cfg        config.EngineConfig
	bus        *bus.Client
	recognizer Recognizer
	log        *slog.Logger

	mu           sync.Mutex
	params       Params
	handler      Handler
	sub          *nats.Subscription
	running      bool
	buffer       []byte
	lastPartial  time.Time
	inflight     bool
	pendingFinal bool
	audioSeen    bool
	speechSeen   bool
	aborted      bool
	wg           sync.WaitGroup
}

func NewStreamEngine(cfg config.EngineConfig, busClient *bus.Client, recognizer Recognizer, log *slog.Logger) *StreamEngine {
	return &StreamEngine{
		cfg:        cfg,
		bus:        busClient,
		recognizer: recognizer,
		log:        log.With(slog.String("component", "stream-engine")),
	}
}

func (e *StreamEngine) Configure(p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = p
}

func (e *StreamEngine) SetHandler(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

func (e *StreamEngine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrEngineBusy
	}
	e.running = true
	e.buffer = nil
	e.lastPartial = time.Time{}
	e.inflight = false
	e.pendingFinal = false
	e.audioSeen = false
	e.speechSeen = false
	e.aborted = false
	e.mu.Unlock()

	sub, err := e.bus.Conn().Subscribe(protocol.SubjectAudioFramePrefix+".>", e.handleFrame)
	if err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.sub = sub
	e.mu.Unlock()

	e.emit(Event{Kind: KindRecognitionStart})
	return nil
}

// Stop flushes the buffered utterance as a final result before ending.
func (e *StreamEngine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.scheduleTranscription(true)
}

// Abort ends the session immediately; buffered audio is discarded.
func (e *StreamEngine) Abort() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.aborted = true
	e.buffer = nil
	e.mu.Unlock()
	e.finish()
}

func (e *StreamEngine) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		e.log.Warn("failed to decode audio frame", slog.String("error", err.Error()))
		return
	}

	e.mu.Lock()
	if !e.running || e.aborted {
		e.mu.Unlock()
		return
	}
	firstAudio := !e.audioSeen
	e.audioSeen = true
	firstSpeech := !e.speechSeen && len(frame.PCM) > 0
	if firstSpeech {
		e.speechSeen = true
	}
	e.buffer = append(e.buffer, frame.PCM...)
	interim := e.params.InterimResults
	e.mu.Unlock()

	if firstAudio {
		e.emit(Event{Kind: KindAudioStart})
		e.emit(Event{Kind: KindSoundStart})
	}
	if firstSpeech {
		e.emit(Event{Kind: KindSpeechStart})
	}

	if interim && !frame.Final && e.shouldSchedulePartial() {
		e.scheduleTranscription(false)
	}
	if frame.Final {
		e.scheduleTranscription(true)
	}
}

func (e *StreamEngine) shouldSchedulePartial() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight {
		return false
	}
	if e.lastPartial.IsZero() {
		e.lastPartial = time.Now()
		return true
	}
	interval := time.Duration(e.cfg.PartialEveryMS) * time.Millisecond
	if interval <= 0 {
		return false
	}
	if time.Since(e.lastPartial) >= interval {
		e.lastPartial = time.Now()
		return true
	}
	return false
}

func (e *StreamEngine) scheduleTranscription(final bool) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	if e.inflight {
		if final {
			e.pendingFinal = true
		}
		e.mu.Unlock()
		return
	}
	pcm := append([]byte(nil), e.buffer...)
	e.inflight = true
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		result, err := e.recognizer.Transcribe(ctx, pcm, e.cfg.SampleRate, e.cfg.Channels, final)

		e.mu.Lock()
		e.inflight = false
		pendingFinal := e.pendingFinal
		e.pendingFinal = false
		aborted := e.aborted
		if !final {
			e.lastPartial = time.Now()
		}
		e.mu.Unlock()

		if aborted {
			return
		}

		switch {
		case err != nil:
			e.log.Warn("transcription failed", slog.String("error", err.Error()))
			e.emit(Event{Kind: KindError, Err: err})
		case result.Text == "":
			if final {
				e.emit(Event{Kind: KindNoMatch})
			}
		default:
			e.emit(resultEvent(result.Text, result.Confidence, final))
		}

		if final {
			e.finish()
			return
		}
		if pendingFinal {
			e.scheduleTranscription(true)
		}
	}()
}

func (e *StreamEngine) finish() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	sub := e.sub
	e.sub = nil
	speechSeen := e.speechSeen
	audioSeen := e.audioSeen
	e.mu.Unlock()

	if sub != nil {
		_ = sub.Drain()
	}
	if speechSeen {
		e.emit(Event{Kind: KindSpeechEnd})
	}
	if audioSeen {
		e.emit(Event{Kind: KindSoundEnd})
		e.emit(Event{Kind: KindAudioEnd})
	}
	e.emit(Event{Kind: KindRecognitionEnd})
}

// Close waits for in-flight transcriptions after the engine has ended.
func (e *StreamEngine) Close() {
	e.wg.Wait()
}

func (e *StreamEngine) emit(evt Event) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler != nil {
		handler(evt)
	}
}
