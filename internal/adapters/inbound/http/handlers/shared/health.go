package shared

import (
	"net/http"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

type (
	dependencyCheckData struct {
		Status      string    `json:"status"`
		LatencyMs   uint64    `json:"latencyMs"`
		Message     string    `json:"message,omitempty"`
		Error       string    `json:"error,omitempty"`
		LastChecked time.Time `json:"lastChecked"`
	}

	livenessData struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Version   string    `json:"version"`
	}

	readinessData struct {
		Status    string                         `json:"status"`
		Timestamp time.Time                      `json:"timestamp"`
		Version   string                         `json:"version"`
		Checks    map[string]dependencyCheckData `json:"checks"`
	}

	healthData struct {
		Status    string                         `json:"status"`
		Timestamp time.Time                      `json:"timestamp"`
		Version   map[string]string              `json:"version"`
		Uptime    map[string]any                 `json:"uptime"`
		Checks    map[string]dependencyCheckData `json:"checks"`
		System    map[string]any                 `json:"system"`
	}
)

func WriteLiveness(w http.ResponseWriter, report *model.LivenessReport) {
	WriteJSON(w, statusFor(report.Status), livenessData{
		Status:    string(report.Status),
		Timestamp: report.Timestamp,
		Version:   report.Version,
	})
}

func WriteReadiness(w http.ResponseWriter, report *model.ReadinessReport) {
	WriteJSON(w, statusFor(report.Status), readinessData{
		Status:    string(report.Status),
		Timestamp: report.Timestamp,
		Version:   report.Version,
		Checks:    toCheckData(report.Checks),
	})
}

func WriteHealth(w http.ResponseWriter, report *model.HealthReport) {
	WriteJSON(w, statusFor(report.Status), healthData{
		Status:    string(report.Status),
		Timestamp: report.Timestamp,
		Version: map[string]string{
			"api":   report.Version.API,
			"build": report.Version.Build,
			"go":    report.Version.Go,
		},
		Uptime: map[string]any{
			"startedAt":       report.Uptime.StartedAt,
			"duration":        report.Uptime.Duration,
			"durationSeconds": report.Uptime.DurationSeconds,
		},
		Checks: toCheckData(report.Checks),
		System: map[string]any{
			"goroutines": report.System.Goroutines,
			"cpuCores":   report.System.CPUCores,
			"allocMb":    report.System.AllocMB,
			"sysMb":      report.System.SysMB,
			"gcCycles":   report.System.GCCycles,
		},
	})
}

// A degraded service still answers, so only down maps to 503.
func statusFor(status model.HealthStatus) int {
	if status == model.HealthStatusDown {
		return http.StatusServiceUnavailable
	}

	return http.StatusOK
}

func toCheckData(checks map[string]model.DependencyCheck) map[string]dependencyCheckData {
	data := make(map[string]dependencyCheckData, len(checks))

	for name, check := range checks {
		data[name] = dependencyCheckData{
			Status:      string(check.Status),
			LatencyMs:   check.LatencyMs,
			Message:     check.Message,
			Error:       check.Error,
			LastChecked: check.LastChecked,
		}
	}

	return data
}
