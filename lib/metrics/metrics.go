// Package metrics holds the prometheus collectors of the server.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdis"

var (
	// Registry is the registry every pdis collector is registered to
	Registry = prometheus.NewRegistry()

	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Commands executed, by command name",
	}, []string{"cmd"})

	commandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "command_errors_total",
		Help:      "Commands which replied with an error, by command name",
	}, []string{"cmd"})

	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Time spent applying a command to the store",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"cmd"})

	connectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Client connections currently open",
	})

	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_received_total",
		Help:      "Client connections accepted",
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_queue_depth",
		Help:      "Commands waiting for the store worker",
	})

	keyspaceKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "keyspace_keys",
		Help:      "Keys in the store, sampled by INFO and DBSIZE",
	})
)

var (
	clients         atomic.Int64
	connections     atomic.Int64
	commandsHandled atomic.Int64
)

func init() {
	Registry.MustRegister(
		commandsTotal,
		commandErrors,
		commandDuration,
		connectedClients,
		connectionsTotal,
		queueDepth,
		keyspaceKeys,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ClientConnected records a new client connection
func ClientConnected() {
	clients.Add(1)
	connections.Add(1)
	connectedClients.Inc()
	connectionsTotal.Inc()
}

// ClientClosed records a closed client connection
func ClientClosed() {
	clients.Add(-1)
	connectedClients.Dec()
}

// ConnectedClients returns the number of open client connections
func ConnectedClients() int64 {
	return clients.Load()
}

// TotalConnections returns the number of connections accepted since start
func TotalConnections() int64 {
	return connections.Load()
}

// TotalCommands returns the number of commands applied since start
func TotalCommands() int64 {
	return commandsHandled.Load()
}

// ObserveCommand records one applied command
func ObserveCommand(name string, elapsed time.Duration, failed bool) {
	commandsHandled.Add(1)
	commandsTotal.WithLabelValues(name).Inc()
	commandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if failed {
		commandErrors.WithLabelValues(name).Inc()
	}
}

// SetQueueDepth records the number of queued commands
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// SetKeyspaceKeys records the key count
func SetKeyspaceKeys(n int64) {
	keyspaceKeys.Set(float64(n))
}

// Handler serves the registry in prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
