package metrics

import (
	"github.com/detsql/detsql/pkg/log"
)

// MetricsConfig selects which of the detsql metrics are registered.
type MetricsConfig struct {
	DisabledMetrics []string `json:"disabledMetrics"`
}

// GetDisabledMetricsMap returns the disabled metric names as a set.
func (mc MetricsConfig) GetDisabledMetricsMap() map[string]struct{} {
	disabledMetricsMap := make(map[string]struct{})

	for i := range mc.DisabledMetrics {
		disabledMetricsMap[mc.DisabledMetrics[i]] = struct{}{}
		log.Infof("Adding disabled metric %s", mc.DisabledMetrics[i])
	}

	return disabledMetricsMap
}
