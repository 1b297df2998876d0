package model

import "time"

type (
	HealthStatus string

	DependencyStatus string

	DependencyCheck struct {
		Status      DependencyStatus
		LatencyMs   uint64
		Message     string
		LastChecked time.Time
		Error       string
	}

	LivenessReport struct {
		Status    HealthStatus
		Timestamp time.Time
		Version   string
	}

	ReadinessReport struct {
		Status    HealthStatus
		Timestamp time.Time
		Version   string
		Checks    map[string]DependencyCheck
	}

	HealthReport struct {
		Status    HealthStatus
		Timestamp time.Time
		Version   VersionInfo
		Uptime    UptimeInfo
		Checks    map[string]DependencyCheck
		System    SystemInfo
	}

	VersionInfo struct {
		API   string
		Build string
		Go    string
	}

	UptimeInfo struct {
		StartedAt       time.Time
		Duration        string
		DurationSeconds uint64
	}

	SystemInfo struct {
		Goroutines uint
		CPUCores   uint
		AllocMB    float64
		SysMB      float64
		GCCycles   uint32
	}
)

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"

	DependencyStatusUp   DependencyStatus = "up"
	DependencyStatusDown DependencyStatus = "down"
)

// OverallStatus folds dependency checks into one status. Any failing
// required dependency takes the service down; failing optional ones degrade it.
func OverallStatus(checks map[string]DependencyCheck, required ...string) HealthStatus {
	status := HealthStatusOK

	for name, check := range checks {
		if check.Status == DependencyStatusUp {
			continue
		}

		for _, r := range required {
			if r == name {
				return HealthStatusDown
			}
		}

		status = HealthStatusDegraded
	}

	return status
}
