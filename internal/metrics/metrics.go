// Package metrics exposes the engine's Prometheus metrics, registered in
// init() and served by the web server at /metrics:
//
//   - flm_operations_total{operation,exchange}  - executed engine operations
//   - flm_operation_errors_total{operation}     - rejected/failed operations
//   - flm_leverage_ratio                        - last measured leverage ratio
//   - flm_twap_target_ratio                     - stored TWAP target (0 = idle)
//   - flm_reward_pool_balance                   - ripcord reward pool
//   - flm_keeper_cycles_total                   - keeper polling cycles
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	sdkmath "cosmossdk.io/math"
)

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flm_operations_total",
			Help: "Executed engine operations",
		},
		[]string{"operation", "exchange"},
	)

	OperationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flm_operation_errors_total",
			Help: "Rejected or failed engine operations",
		},
		[]string{"operation"},
	)

	LeverageRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flm_leverage_ratio",
			Help: "Last measured leverage ratio",
		},
	)

	TwapTargetRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flm_twap_target_ratio",
			Help: "Stored TWAP target ratio, zero when idle",
		},
	)

	RewardPoolBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flm_reward_pool_balance",
			Help: "Ripcord reward pool balance",
		},
	)

	KeeperCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flm_keeper_cycles_total",
			Help: "Keeper polling cycles",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Operations,
		OperationErrors,
		LeverageRatio,
		TwapTargetRatio,
		RewardPoolBalance,
		KeeperCycles,
	)
}

// SetGauge updates a gauge from a fixed-point value, ignoring conversion
// failures: dashboards tolerate a stale point, the engine does not tolerate
// an abort.
func SetGauge(g prometheus.Gauge, v sdkmath.LegacyDec) {
	if v.IsNil() {
		return
	}
	f, err := v.Float64()
	if err != nil {
		return
	}
	g.Set(f)
}
