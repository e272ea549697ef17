package observability

import (
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// DefaultMetricsPort is used when the exporter's bound port cannot be
// determined.
const DefaultMetricsPort = 9090

// metricsHost keeps the exporter off the network; /metrics on the main
// server proxies to it.
const metricsHost = "127.0.0.1"

var (
	TelemetrySystem    *telemetry.System
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts the Prometheus exporter on loopback and installs the
// telemetry system that feeds it. Port 0 picks a free port. The namespace
// prefixes every metric and defaults to serviceName.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	if port < 0 {
		port = 0
	}
	prefix := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		prefix = namespace[0]
	}

	exporter := exporters.NewPrometheusExporter(prefix, net.JoinHostPort(metricsHost, strconv.Itoa(port)))
	if err := exporter.Start(); err != nil {
		return err
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	metricsPort = boundPort(exporter.GetAddr(), port)
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// StopMetrics stops the exporter and disables metric emission.
func StopMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort returns the port the exporter listens on.
func GetMetricsPort() int {
	return metricsPort
}

// MetricsURL is the exporter's scrape URL.
func MetricsURL() string {
	port := metricsPort
	if port == 0 {
		port = DefaultMetricsPort
	}
	return "http://" + net.JoinHostPort(metricsHost, strconv.Itoa(port)) + "/metrics"
}

// boundPort reads the port from the exporter's address, falling back to
// the requested one.
func boundPort(addr string, requested int) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err == nil {
		if port, err := strconv.Atoi(portStr); err == nil && port != 0 {
			return port
		}
	}
	if requested != 0 {
		return requested
	}
	return DefaultMetricsPort
}
