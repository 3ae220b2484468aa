package host

import "expvar"

var (
	metricRequestsTotal      = expvar.NewInt("beacon_requests_total")
	metricOutcomesTotal      = expvar.NewMap("beacon_outcomes_total")
	metricDeferredTotal      = expvar.NewInt("beacon_deferred_total")
	metricCancelsTotal       = expvar.NewInt("beacon_cancels_total")
	metricSweepExpiredTotal  = expvar.NewInt("beacon_sweep_expired_total")
	metricSweepErrorsTotal   = expvar.NewInt("beacon_sweep_errors_total")
	metricConnectionsActive  = expvar.NewInt("beacon_connections_active")
	metricDroppedPushesTotal = expvar.NewInt("beacon_dropped_pushes_total")
)
