/*
Copyright (c) the go-otp authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter serves a Counters snapshot as Prometheus gauges.
type PrometheusExporter struct {
	registry   *prometheus.Registry
	counters   *Counters
	listenPort int
}

// NewPrometheusExporter builds an exporter for counters, to be served on
// listenPort.
func NewPrometheusExporter(counters *Counters, listenPort int) *PrometheusExporter {
	return &PrometheusExporter{
		registry:   prometheus.NewRegistry(),
		counters:   counters,
		listenPort: listenPort,
	}
}

// Start registers gauge collectors backed by the live counters and
// blocks serving /metrics. Intended to run in its own goroutine.
func (e *PrometheusExporter) Start() {
	e.registry.MustRegister(
		e.gauge("otp_packets_sent_total", func(s Snapshot) float64 { return float64(s.PacketsSent) }),
		e.gauge("otp_packets_received_total", func(s Snapshot) float64 { return float64(s.PacketsReceived) }),
		e.gauge("otp_packets_dropped_total", func(s Snapshot) float64 { return float64(s.PacketsDropped) }),
		e.gauge("otp_folio_aborted_total", func(s Snapshot) float64 { return float64(s.FolioAborted) }),
		e.gauge("otp_winner_changed_total", func(s Snapshot) float64 { return float64(s.WinnerChanged) }),
		e.gauge("otp_staleness_evictions_total", func(s Snapshot) float64 { return float64(s.StalenessEvictions) }),
		e.gauge("otp_replay_rejected_total", func(s Snapshot) float64 { return float64(s.ReplayRejected) }),
	)

	http.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", e.listenPort), nil))
}

func (e *PrometheusExporter) gauge(name string, read func(Snapshot) float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: name}, func() float64 {
		return read(e.counters.Snapshot())
	})
}
