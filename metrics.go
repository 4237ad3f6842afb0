package canclient

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Metric names. Each carries a transport label.
const (
	metricSent        = "canclient_frames_sent_total"
	metricReceived    = "canclient_frames_received_total"
	metricTimeouts    = "canclient_receive_timeouts_total"
	metricIOErrors    = "canclient_io_errors_total"
	metricOpenAttempt = "canclient_open_attempts_total"
)

func metricName(name string, labels ...string) string {
	if len(labels) == 0 {
		return name
	}
	s := name + "{"
	for i := 0; i+1 < len(labels); i += 2 {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s=%q", labels[i], labels[i+1])
	}
	return s + "}"
}

func counter(set *metrics.Set, name string, labels ...string) *metrics.Counter {
	full := metricName(name, labels...)
	if set == nil {
		return metrics.GetOrCreateCounter(full)
	}
	return set.GetOrCreateCounter(full)
}

// countOpen records one open attempt and its result ("ok" or "error").
func countOpen(set *metrics.Set, k Kind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	counter(set, metricOpenAttempt, "transport", k.String(), "result", result).Inc()
}

// meteredTransport counts frames, timeouts and errors of the inner
// Transport. A nil set records into the process-wide default set.
type meteredTransport struct {
	inner    Transport
	sent     *metrics.Counter
	received *metrics.Counter
	timeouts *metrics.Counter
	errors   *metrics.Counter
}

func newMeteredTransport(inner Transport, set *metrics.Set) Transport {
	k := inner.Kind().String()
	return &meteredTransport{
		inner:    inner,
		sent:     counter(set, metricSent, "transport", k),
		received: counter(set, metricReceived, "transport", k),
		timeouts: counter(set, metricTimeouts, "transport", k),
		errors:   counter(set, metricIOErrors, "transport", k),
	}
}

func (m *meteredTransport) Kind() Kind   { return m.inner.Kind() }
func (m *meteredTransport) Info() string { return m.inner.Info() }

func (m *meteredTransport) Send(frame Frame) error {
	if err := m.inner.Send(frame); err != nil {
		m.errors.Inc()
		return err
	}
	m.sent.Inc()
	return nil
}

func (m *meteredTransport) Receive(timeout time.Duration) (Frame, bool, error) {
	f, ok, err := m.inner.Receive(timeout)
	switch {
	case err != nil:
		m.errors.Inc()
	case ok:
		m.received.Inc()
	default:
		m.timeouts.Inc()
	}
	return f, ok, err
}

func (m *meteredTransport) Close() error { return m.inner.Close() }
