package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harklabs/hark-core/internal/asr"
	"github.com/harklabs/hark-core/internal/bus"
	"github.com/harklabs/hark-core/internal/config"
	"github.com/harklabs/hark-core/internal/eventstore"
	"github.com/harklabs/hark-core/internal/natsserver"
	"github.com/harklabs/hark-core/internal/protocol"
	"github.com/harklabs/hark-core/internal/session"
)

// Runtime wires the session controller, its engine backend and the
// surrounding daemon plumbing together.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	metricsSrv  *http.Server
	tracerClose func(context.Context) error
	controller  *session.Controller
	store       *eventstore.Store
	busClient   *bus.Client
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient
	defer busClient.Close()

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	r.store = store
	defer store.Close()

	engine, err := r.buildEngine(busClient)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	controller := session.New(engine, r.logger)
	r.controller = controller
	defer controller.Close()

	overrides, err := r.sessionOverrides()
	if err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}
	if err := controller.Initialize(overrides); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}

	if err := store.AppendSession(ctx, controller.SessionID(), r.cfg.Session.Language); err != nil {
		r.logger.Warn("failed to record session", slog.String("error", err.Error()))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	r.registerSessionRoutes(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricHandler)
		r.metricsSrv = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("engine", r.cfg.Engine.Mode),
		slog.String("session_id", controller.SessionID()))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildEngine(busClient *bus.Client) (asr.Engine, error) {
	switch r.cfg.Engine.Mode {
	case "stream":
		var recognizer asr.Recognizer
		if r.cfg.Engine.RecognizerMode == "exec" {
			rec, err := asr.NewExecRecognizer(r.cfg.Engine)
			if err != nil {
				return nil, err
			}
			recognizer = rec
		} else {
			recognizer = asr.NewMockRecognizer()
		}
		return asr.NewStreamEngine(r.cfg.Engine, busClient, recognizer, r.logger), nil
	default:
		delay := time.Duration(r.cfg.Engine.PartialEveryMS) * time.Millisecond
		return asr.NewMockEngine(nil, delay), nil
	}
}

// sessionOverrides turns the daemon-level session defaults into controller
// overrides, including the observers that publish on the bus and feed the
// audit timeline.
func (r *Runtime) sessionOverrides() (session.Overrides, error) {
	c := r.cfg.Session
	ov := session.Overrides{
		Continuous:      &c.Continuous,
		Grammar:         &c.Grammar,
		InterimResults:  &c.InterimResults,
		Language:        &c.Language,
		MaxAlternatives: &c.MaxAlternatives,
		StartOnInit:     &c.StartOnInit,
	}
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return session.Overrides{}, err
		}
		ov.Pattern = re
	}
	obs := r.busObservers()
	ov.Observers = &obs
	return ov, nil
}

func (r *Runtime) busObservers() session.Observers {
	return session.Observers{
		OnRecognitionStart: func() { r.recordState("listening") },
		OnRecognitionEnd:   func() { r.recordState("idle") },
		OnResult:           r.recordResult,
		OnError: func(err error) {
			r.logger.Warn("engine error", slog.String("error", err.Error()))
			r.appendAudit(eventstore.Event{
				SessionID: r.controller.SessionID(),
				Kind:      eventstore.KindError,
				Text:      err.Error(),
			})
		},
		OnNoMatch: func(asr.Event) {
			r.logger.Debug("no viable transcription for utterance")
		},
	}
}

func (r *Runtime) recordState(state string) {
	msg := protocol.StateChange{
		SessionID: r.controller.SessionID(),
		State:     state,
		Timestamp: time.Now().UTC(),
	}
	r.publish(protocol.SubjectSessionState, msg)
	r.appendAudit(eventstore.Event{
		SessionID: r.controller.SessionID(),
		Kind:      eventstore.KindStateChange,
		Text:      state,
	})
}

func (r *Runtime) recordResult(evt asr.Event) {
	if evt.Index < 0 || evt.Index >= len(evt.Results) {
		return
	}
	final := evt.Results[evt.Index].Final

	msg := protocol.Transcript{
		SessionID: r.controller.SessionID(),
		Partial:   !final,
		Timestamp: time.Now().UTC(),
	}
	subject := protocol.SubjectTranscriptPartial
	if final {
		entry, ok := r.controller.LastEntry()
		if !ok {
			return
		}
		subject = protocol.SubjectTranscriptFinal
		msg.EntryID = entry.ID
		msg.Text = entry.Text
		msg.Confidence = entry.Confidence
	} else {
		msg.Text = r.controller.LiveTranscript()
	}
	if msg.Text == "" {
		return
	}
	r.publish(subject, msg)

	if final {
		r.appendAudit(eventstore.Event{
			SessionID:  r.controller.SessionID(),
			Kind:       eventstore.KindTranscript,
			Text:       msg.Text,
			Confidence: msg.Confidence,
		})
	}

	if match, ok := r.controller.Match(); ok {
		r.publish(protocol.SubjectMatch, protocol.Match{
			SessionID: r.controller.SessionID(),
			Text:      match,
			Timestamp: time.Now().UTC(),
		})
		if final {
			r.appendAudit(eventstore.Event{
				SessionID: r.controller.SessionID(),
				Kind:      eventstore.KindMatch,
				Match:     match,
			})
		}
	}
}

func (r *Runtime) publish(subject string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Warn("failed to marshal bus message", slog.String("error", err.Error()))
		return
	}
	if err := r.busClient.Conn().Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish bus message",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

func (r *Runtime) appendAudit(evt eventstore.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.store.AppendEvent(ctx, evt); err != nil {
		r.logger.Warn("failed to append audit event", slog.String("error", err.Error()))
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
