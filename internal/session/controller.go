package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/harklabs/hark-core/internal/asr"
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateListening
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	default:
		return "uninitialized"
	}
}

var (
	ErrNotInitialized     = errors.New("session: controller not initialized")
	ErrAlreadyInitialized = errors.New("session: controller already initialized")
)

// Controller keeps one continuous recognition session alive across the
// engine's per-utterance termination. It owns the session configuration,
// the transcript ledger and the lifecycle state; the engine instance is
// owned for the controller's entire lifetime and never swapped.
//
// All lifecycle transitions and engine notifications are processed one at
// a time, in arrival order, on a single dispatch goroutine. Control
// operations return immediately; their effects are observed through the
// exposed state.
type Controller struct {
	log     *slog.Logger
	engine  asr.Engine
	ledger  *Ledger
	metrics *metrics
	queue   *taskQueue

	mu          sync.Mutex
	cfg         Config
	state       State
	startQueued bool // engine start issued, confirmation pending
	stopWanted  bool // caller asked for the next end, do not auto-restart
	restarting  bool // start deferred until the current stop's end arrives
	match       string
	matched     bool
	sessionID   string
	initialized bool
}

func New(engine asr.Engine, log *slog.Logger) *Controller {
	c := &Controller{
		log:       log.With(slog.String("component", "session")),
		engine:    engine,
		ledger:    NewLedger(),
		queue:     newTaskQueue(),
		state:     StateUninitialized,
		sessionID: uuid.NewString(),
	}
	m, err := newMetrics()
	if err != nil {
		c.log.Warn("session metrics unavailable", slog.String("error", err.Error()))
	}
	c.metrics = m
	return c
}

// Initialize merges user overrides onto the fixed defaults, wires the
// engine notifications and moves the session to idle. Called exactly once
// per controller lifetime. When start_on_init holds, listening begins
// immediately.
func (c *Controller) Initialize(ov Overrides) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.cfg = Defaults().merge(ov)
	c.state = StateIdle
	c.initialized = true
	startOnInit := c.cfg.StartOnInit
	c.mu.Unlock()

	c.engine.SetHandler(func(evt asr.Event) {
		c.queue.push(func() { c.handleEvent(evt) })
	})
	go c.run()

	if startOnInit {
		c.queue.push(func() { c.doStart(nil) })
	}
	return nil
}

func (c *Controller) run() {
	for {
		task, ok := c.queue.pop()
		if !ok {
			return
		}
		task()
	}
}

// Close aborts any active recognition and stops the dispatch loop.
func (c *Controller) Close() {
	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()
	if initialized {
		c.engine.Abort()
	}
	c.queue.close()
}

// Start begins listening. Overrides, when given, are merged onto the
// active configuration first; the engine reads them when its own start is
// invoked. Calling Start while already listening is a silent no-op.
func (c *Controller) Start(ov *Overrides) error {
	return c.dispatch(func() { c.doStart(ov) })
}

// Stop ends the session gracefully; the engine flushes any pending final
// result before its end notification settles the state to idle.
func (c *Controller) Stop() error {
	return c.dispatch(c.doStop)
}

// Abort ends the session immediately; in-flight interim results are
// discarded.
func (c *Controller) Abort() error {
	return c.dispatch(c.doAbort)
}

// Restart stops the session and schedules a start on a later dispatch
// turn, after the engine has fully processed its own stop sequence.
func (c *Controller) Restart(ov *Overrides) error {
	return c.dispatch(func() { c.doRestart(ov) })
}

func (c *Controller) dispatch(task func()) error {
	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}
	c.queue.push(task)
	return nil
}

func (c *Controller) doStart(ov *Overrides) {
	c.mu.Lock()
	if ov != nil {
		c.cfg = c.cfg.merge(*ov)
	}
	if c.state == StateListening || c.startQueued {
		// reentrancy guard: the engine does not tolerate overlapping starts
		c.mu.Unlock()
		return
	}
	c.startQueued = true
	c.stopWanted = false
	cfg := c.cfg
	c.mu.Unlock()

	c.engine.Configure(cfg.engineParams())
	if err := c.engine.Start(); err != nil {
		c.mu.Lock()
		c.startQueued = false
		c.mu.Unlock()
		c.log.Warn("engine start failed", slog.String("error", err.Error()))
		if cb := cfg.Observers.OnError; cb != nil {
			cb(err)
		}
		return
	}
	c.metrics.incEngineStarts()
}

func (c *Controller) doStop() {
	c.mu.Lock()
	c.stopWanted = true
	c.mu.Unlock()
	c.engine.Stop()
}

func (c *Controller) doAbort() {
	c.mu.Lock()
	c.stopWanted = true
	c.mu.Unlock()
	c.engine.Abort()
}

func (c *Controller) doRestart(ov *Overrides) {
	c.mu.Lock()
	if ov != nil {
		c.cfg = c.cfg.merge(*ov)
	}
	active := c.state == StateListening || c.startQueued
	if active {
		c.stopWanted = true
		c.restarting = true
	}
	c.mu.Unlock()

	if active {
		c.engine.Stop()
		return
	}
	c.queue.push(func() { c.doStart(nil) })
}

func (c *Controller) handleEvent(evt asr.Event) {
	c.mu.Lock()
	obs := c.cfg.Observers
	c.mu.Unlock()

	switch evt.Kind {
	case asr.KindRecognitionStart:
		c.mu.Lock()
		c.state = StateListening
		c.startQueued = false
		c.mu.Unlock()
		c.log.Debug("session listening", slog.String("session_id", c.sessionID))
		invoke(obs.OnRecognitionStart)
	case asr.KindRecognitionEnd:
		c.handleEnd(obs)
	case asr.KindResult:
		c.handleResult(evt, obs)
	case asr.KindNoMatch:
		if obs.OnNoMatch != nil {
			obs.OnNoMatch(evt)
		}
	case asr.KindError:
		c.metrics.incEngineErrors()
		if obs.OnError != nil {
			obs.OnError(evt.Err)
		}
	case asr.KindAudioStart:
		invoke(obs.OnAudioStart)
	case asr.KindAudioEnd:
		invoke(obs.OnAudioEnd)
	case asr.KindSoundStart:
		invoke(obs.OnSoundStart)
	case asr.KindSoundEnd:
		invoke(obs.OnSoundEnd)
	case asr.KindSpeechStart:
		invoke(obs.OnSpeechStart)
	case asr.KindSpeechEnd:
		invoke(obs.OnSpeechEnd)
	}
}

// handleEnd settles the state to idle and sustains continuous listening.
// Only a natural end of utterance triggers the auto-restart; an end caused
// by an explicit Stop or Abort does not.
func (c *Controller) handleEnd(obs Observers) {
	c.mu.Lock()
	c.state = StateIdle
	c.startQueued = false
	wanted := c.stopWanted
	c.stopWanted = false
	restarting := c.restarting
	c.restarting = false
	continuous := c.cfg.Continuous
	c.mu.Unlock()

	invoke(obs.OnRecognitionEnd)

	switch {
	case restarting:
		c.queue.push(func() { c.doStart(nil) })
	case continuous && !wanted:
		c.metrics.incAutoRestarts()
		c.engine.Stop()
		c.queue.push(func() { c.doStart(nil) })
	}
}

func (c *Controller) handleResult(evt asr.Event, obs Observers) {
	if evt.Index < 0 || evt.Index >= len(evt.Results) {
		return
	}
	result := evt.Results[evt.Index]
	if len(result.Alternatives) == 0 {
		return
	}
	best := result.Alternatives[0]

	if result.Final {
		entry := c.ledger.RecordFinal(best.Confidence, best.Transcript)
		c.metrics.incFinals()
		c.log.Debug("final transcript",
			slog.String("entry_id", entry.ID),
			slog.Float64("confidence", entry.Confidence))
	} else {
		c.ledger.RecordInterim(best.Transcript)
		c.metrics.incInterims()
	}

	c.mu.Lock()
	pattern := c.cfg.Pattern
	c.mu.Unlock()
	if pattern != nil {
		match, ok := scanPattern(best.Transcript, pattern)
		c.mu.Lock()
		c.match, c.matched = match, ok
		c.mu.Unlock()
		if ok {
			c.metrics.incMatches()
		}
	}

	if obs.OnResult != nil {
		obs.OnResult(evt)
	}
}

func invoke(cb func()) {
	if cb != nil {
		cb()
	}
}

// SessionID identifies this controller's logical session.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the ordered finalized entries.
func (c *Controller) Transcript() []Entry {
	entries, _ := c.ledger.Snapshot()
	return entries
}

// LiveTranscript returns the most recent interim hypothesis.
func (c *Controller) LiveTranscript() string {
	_, live := c.ledger.Snapshot()
	return live
}

// LastEntry returns the most recently finalized entry, if any.
func (c *Controller) LastEntry() (Entry, bool) {
	return c.ledger.Last()
}

// Match returns the latest pattern match extracted from recognized text.
func (c *Controller) Match() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.match, c.matched
}

// Snapshot is a read-only view of the session for external callers.
type Snapshot struct {
	SessionID      string  `json:"session_id"`
	State          string  `json:"state"`
	Entries        []Entry `json:"entries"`
	LiveTranscript string  `json:"live_transcript"`
	Match          string  `json:"match,omitempty"`
	Matched        bool    `json:"matched"`
}

func (c *Controller) Snapshot() Snapshot {
	entries, live := c.ledger.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:      c.sessionID,
		State:          c.state.String(),
		Entries:        entries,
		LiveTranscript: live,
		Match:          c.match,
		Matched:        c.matched,
	}
}

// taskQueue is an unbounded FIFO feeding the dispatch goroutine. Pushing
// never blocks; tasks scheduled from within a running task land on a
// later turn.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *taskQueue) push(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
}

func (q *taskQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}

func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
