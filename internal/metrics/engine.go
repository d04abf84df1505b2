package metrics

import "time"

// Engine holds the metrics recorded by input-context sessions. A nil
// *Engine is valid and records nothing.
type Engine struct {
	registry *Registry

	KeysHotkey     *Counter
	KeysUpstream   *Counter
	KeysComposer   *Counter
	UpstreamErrors *Counter
	AsyncDiscarded *Counter

	ActiveSessions *Gauge
	PendingKeys    *Gauge

	UpstreamLatency *Histogram
}

// NewEngine registers the engine metrics in registry.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = NewRegistry("imbridge", "")
	}
	return &Engine{
		registry: registry,

		KeysHotkey: registry.Counter(
			"keys_hotkey_total",
			"Key events consumed by a hotkey binding", nil),
		KeysUpstream: registry.Counter(
			"keys_upstream_total",
			"Key events consumed by the input-method service", nil),
		KeysComposer: registry.Counter(
			"keys_composer_total",
			"Key events handed to the fallback composer", nil),
		UpstreamErrors: registry.Counter(
			"upstream_errors_total",
			"Failed or timed out calls to the input-method service", nil),
		AsyncDiscarded: registry.Counter(
			"async_discarded_total",
			"Buffered key events dropped by focus change or destroy", nil),

		ActiveSessions: registry.Gauge(
			"active_sessions",
			"Number of live input-context sessions", nil),
		PendingKeys: registry.Gauge(
			"pending_keys",
			"Key events awaiting an asynchronous reply", nil),

		UpstreamLatency: registry.Histogram(
			"upstream_key_seconds",
			"Round trip of ProcessKeyEvent calls in seconds", nil, nil),
	}
}

// Registry returns the registry the metrics live in.
func (e *Engine) Registry() *Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// KeyHotkey records a key consumed by a hotkey.
func (e *Engine) KeyHotkey() {
	if e != nil {
		e.KeysHotkey.Inc()
	}
}

// KeyUpstream records a key consumed by the service.
func (e *Engine) KeyUpstream() {
	if e != nil {
		e.KeysUpstream.Inc()
	}
}

// KeyComposer records a key handed to the fallback composer.
func (e *Engine) KeyComposer() {
	if e != nil {
		e.KeysComposer.Inc()
	}
}

// UpstreamCall records one service round trip.
func (e *Engine) UpstreamCall(d time.Duration, err error) {
	if e == nil {
		return
	}
	e.UpstreamLatency.ObserveDuration(d)
	if err != nil {
		e.UpstreamErrors.Inc()
	}
}

// Discarded records n buffered keys dropped without replay.
func (e *Engine) Discarded(n int) {
	if e != nil && n > 0 {
		e.AsyncDiscarded.Add(uint64(n))
	}
}

// SessionOpened and SessionClosed track the live session count.
func (e *Engine) SessionOpened() {
	if e != nil {
		e.ActiveSessions.Inc()
	}
}

func (e *Engine) SessionClosed() {
	if e != nil {
		e.ActiveSessions.Dec()
	}
}

// Pending adjusts the pending async key gauge by delta.
func (e *Engine) Pending(delta int) {
	if e != nil {
		e.PendingKeys.value.Add(int64(delta))
	}
}
