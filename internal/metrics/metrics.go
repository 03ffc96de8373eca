// Package metrics exposes Prometheus counters for the helper's update and
// attachment flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	updateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wab2b_update_checks_total",
		Help: "Update checks by result (available, up_to_date, not_found, error)",
	}, []string{"result"})

	updateDownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wab2b_update_download_bytes_total",
		Help: "Total bytes downloaded for update artifacts",
	})

	updateInstalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wab2b_update_installs_total",
		Help: "Update install handoffs by result (success, error)",
	}, []string{"result"})

	attachmentFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wab2b_attachment_fetches_total",
		Help: "Deep-link attachment fetches by result (success, error)",
	}, []string{"result"})
)

// RecordUpdateCheck counts one update check with its outcome.
func RecordUpdateCheck(result string) {
	updateChecks.WithLabelValues(result).Inc()
}

// AddDownloadBytes accumulates downloaded artifact bytes.
func AddDownloadBytes(n int64) {
	if n > 0 {
		updateDownloadBytes.Add(float64(n))
	}
}

// RecordInstall counts one install handoff attempt.
func RecordInstall(result string) {
	updateInstalls.WithLabelValues(result).Inc()
}

// RecordAttachmentFetch counts one attachment fetch.
func RecordAttachmentFetch(result string) {
	attachmentFetches.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}
