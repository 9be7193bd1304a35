// Package metrics exposes Prometheus collectors for the server internals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Server holds the server-side collectors. A nil *Server disables
// collection, every method is safe to call on it.
type Server struct {
	activeSessions    prometheus.Gauge
	quotesSent        prometheus.Counter
	pingsReceived     prometheus.Counter
	subscribeRequests prometheus.Counter
	sessionErrors     prometheus.Counter
}

// NewServer builds the collectors and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotes_active_sessions",
			Help: "Number of live subscriber sessions",
		}),
		quotesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_sent_total",
			Help: "Quote datagrams enqueued for delivery",
		}),
		pingsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_pings_received_total",
			Help: "Keepalive pings received from subscribers",
		}),
		subscribeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_subscribe_requests_total",
			Help: "Subscription requests accepted on the control stream",
		}),
		sessionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_session_errors_total",
			Help: "Session quote send errors",
		}),
	}
	reg.MustRegister(m.activeSessions, m.quotesSent, m.pingsReceived, m.subscribeRequests, m.sessionErrors)
	return m
}

// SessionOpened increments the active session gauge.
func (m *Server) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Server) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// QuoteSent counts one quote enqueued to a session.
func (m *Server) QuoteSent() {
	if m == nil {
		return
	}
	m.quotesSent.Inc()
}

// PingReceived counts one keepalive ping.
func (m *Server) PingReceived() {
	if m == nil {
		return
	}
	m.pingsReceived.Inc()
}

// SubscribeRequest counts one accepted subscription request.
func (m *Server) SubscribeRequest() {
	if m == nil {
		return
	}
	m.subscribeRequests.Inc()
}

// SessionError counts one session level error.
func (m *Server) SessionError() {
	if m == nil {
		return
	}
	m.sessionErrors.Inc()
}
