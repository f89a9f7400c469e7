package websocket

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "wavecli.websocket"

// OTelMetrics holds the websocket instrument set. All record methods are
// nil-safe so callers can use GetOTelMetrics() directly without checking
// whether telemetry was initialized.
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	activeConnections  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	messagesReceived   metric.Int64Counter
	bytesSent          metric.Int64Counter
	bytesReceived      metric.Int64Counter
	droppedClients     metric.Int64Counter
}

var (
	otelMu     sync.RWMutex
	otelShared *OTelMetrics
)

// InitOTelMetrics builds the websocket instruments on the global meter
// provider. Call once during startup after telemetry is configured.
func InitOTelMetrics() error {
	m, err := newOTelMetrics(otel.Meter(meterName))
	if err != nil {
		return err
	}
	otelMu.Lock()
	otelShared = m
	otelMu.Unlock()
	return nil
}

// GetOTelMetrics returns the shared instrument set, or nil when telemetry
// was never initialized.
func GetOTelMetrics() *OTelMetrics {
	otelMu.RLock()
	defer otelMu.RUnlock()
	return otelShared
}

func newOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	connectionsTotal, err := meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of websocket connections accepted"),
	)
	if err != nil {
		return nil, err
	}

	activeConnections, err := meter.Int64UpDownCounter(
		"websocket_active_connections",
		metric.WithDescription("Number of currently connected websocket clients"),
	)
	if err != nil {
		return nil, err
	}

	connectionDuration, err := meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Websocket connection lifetime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	messagesSent, err := meter.Int64Counter(
		"websocket_messages_sent_total",
		metric.WithDescription("Total number of messages written to clients"),
	)
	if err != nil {
		return nil, err
	}

	messagesReceived, err := meter.Int64Counter(
		"websocket_messages_received_total",
		metric.WithDescription("Total number of messages received from clients"),
	)
	if err != nil {
		return nil, err
	}

	bytesSent, err := meter.Int64Counter(
		"websocket_sent_bytes_total",
		metric.WithDescription("Total bytes written to clients"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	bytesReceived, err := meter.Int64Counter(
		"websocket_received_bytes_total",
		metric.WithDescription("Total bytes received from clients"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	droppedClients, err := meter.Int64Counter(
		"websocket_dropped_clients_total",
		metric.WithDescription("Clients disconnected because their send buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		connectionsTotal:   connectionsTotal,
		activeConnections:  activeConnections,
		connectionDuration: connectionDuration,
		messagesSent:       messagesSent,
		messagesReceived:   messagesReceived,
		bytesSent:          bytesSent,
		bytesReceived:      bytesReceived,
		droppedClients:     droppedClients,
	}, nil
}

// RecordConnection counts a new client connection.
func (m *OTelMetrics) RecordConnection(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.activeConnections.Add(ctx, 1)
}

// RecordDisconnection counts a client disconnect and its connection lifetime.
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, connectedFor time.Duration) {
	if m == nil {
		return
	}
	m.activeConnections.Add(ctx, -1)
	m.connectionDuration.Record(ctx, connectedFor.Seconds())
}

// RecordMessageSent counts one message delivered to a client.
func (m *OTelMetrics) RecordMessageSent(ctx context.Context, bytes int) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, 1)
	m.bytesSent.Add(ctx, int64(bytes))
}

// RecordMessageReceived counts one message received from a client.
func (m *OTelMetrics) RecordMessageReceived(ctx context.Context, bytes int) {
	if m == nil {
		return
	}
	m.messagesReceived.Add(ctx, 1)
	m.bytesReceived.Add(ctx, int64(bytes))
}

// RecordDroppedClients counts clients evicted for full send buffers.
func (m *OTelMetrics) RecordDroppedClients(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.droppedClients.Add(ctx, int64(count))
}
