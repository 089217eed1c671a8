package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decode forms.
const (
	FormBase64 = "base64"
	FormRaw    = "raw"
)

var (
	taskDecodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biosign_task_decodes_total",
			Help: "Sign tasks decoded, by transport form",
		},
		[]string{"form"},
	)

	taskDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biosign_task_decode_errors_total",
			Help: "Sign task decode failures, by error kind",
		},
		[]string{"kind"},
	)

	pipelineStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biosign_pipeline_stages_total",
			Help: "Pipeline stage executions, by stage and status",
		},
		[]string{"stage", "status"},
	)

	uploadsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biosign_uploads_received_total",
			Help: "Signed documents received by the task server",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordTaskDecode(form string) {
	taskDecodes.WithLabelValues(form).Inc()
}

func RecordTaskDecodeError(kind string) {
	taskDecodeErrors.WithLabelValues(kind).Inc()
}

func RecordStage(stage string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	pipelineStages.WithLabelValues(stage, status).Inc()
}

func RecordUpload(status string) {
	uploadsReceived.WithLabelValues(status).Inc()
}
