package session

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	engineStarts metric.Int64Counter
	autoRestarts metric.Int64Counter
	finals       metric.Int64Counter
	interims     metric.Int64Counter
	matches      metric.Int64Counter
	engineErrors metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter("hark.session")
	var m metrics
	var errs []error

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			errs = append(errs, err)
		}
		return c
	}

	m.engineStarts = counter("hark.session.engine_starts", "Engine start invocations")
	m.autoRestarts = counter("hark.session.auto_restarts", "Continuous-mode restarts after natural end of utterance")
	m.finals = counter("hark.session.final_results", "Finalized transcript entries")
	m.interims = counter("hark.session.interim_results", "Interim transcript updates")
	m.matches = counter("hark.session.pattern_matches", "Pattern hits in recognized text")
	m.engineErrors = counter("hark.session.engine_errors", "Errors reported by the engine")

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &m, nil
}

func (m *metrics) incEngineStarts() {
	if m != nil {
		m.engineStarts.Add(context.Background(), 1)
	}
}

func (m *metrics) incAutoRestarts() {
	if m != nil {
		m.autoRestarts.Add(context.Background(), 1)
	}
}

func (m *metrics) incFinals() {
	if m != nil {
		m.finals.Add(context.Background(), 1)
	}
}

func (m *metrics) incInterims() {
	if m != nil {
		m.interims.Add(context.Background(), 1)
	}
}

func (m *metrics) incMatches() {
	if m != nil {
		m.matches.Add(context.Background(), 1)
	}
}

func (m *metrics) incEngineErrors() {
	if m != nil {
		m.engineErrors.Add(context.Background(), 1)
	}
}
