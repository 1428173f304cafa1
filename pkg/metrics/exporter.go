package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuemby/resolvd/pkg/log"
	"github.com/cuemby/resolvd/pkg/types"
)

// exporter serves the Prometheus exposition endpoint for one Metrics
// instance and optionally writes periodic JSON snapshots to a file.
type exporter struct {
	server *http.Server
	stopCh chan struct{}
}

// Handler returns the Prometheus HTTP handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartPrometheusExporter serves /metrics on the given address. Binding
// is best-effort: a failure is logged and resolution is unaffected.
func (m *Metrics) StartPrometheusExporter(address string) {
	m.StopExporter()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{Addr: address, Handler: mux}
	m.exporter = &exporter{server: server, stopCh: make(chan struct{})}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Warn().
				Err(err).
				Str("component", "metrics").
				Str("address", address).
				Msg("prometheus exporter failed")
		}
	}()

	log.Logger.Info().
		Str("component", "metrics").
		Str("address", address).
		Msg("prometheus exporter started")
}

// StartReporter periodically exports a JSON snapshot to file until
// StopExporter is called. Invalid arguments disable the reporter.
func (m *Metrics) StartReporter(interval time.Duration, file string) {
	if interval <= 0 || file == "" {
		return
	}
	if m.exporter == nil {
		m.exporter = &exporter{stopCh: make(chan struct{})}
	}
	stopCh := m.exporter.stopCh

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.ExportToFile(file); err != nil {
					log.Logger.Warn().
						Err(err).
						Str("component", "metrics").
						Str("file", file).
						Msg("metrics export failed")
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// StopExporter shuts down the HTTP endpoint and the report loop.
func (m *Metrics) StopExporter() {
	if m.exporter == nil {
		return
	}
	close(m.exporter.stopCh)
	if m.exporter.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.exporter.server.Shutdown(ctx)
	}
	m.exporter = nil
}

// jsonSnapshot is the on-disk shape of an exported stats snapshot.
type jsonSnapshot struct {
	Timestamp int64 `json:"timestamp"`
	types.Stats
}

// ExportToFile writes the current stats snapshot as indented JSON.
func (m *Metrics) ExportToFile(filename string) error {
	snapshot := jsonSnapshot{
		Timestamp: time.Now().UnixMilli(),
		Stats:     m.GetStats(),
	}
	data, err := json.MarshalIndent(snapshot, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
