package httptransport

import "expvar"

var (
	metricAdminCallsTotal        = expvar.NewInt("admin_calls_total")
	metricAdminErrorsTotal       = expvar.NewInt("admin_errors_total")
	metricAdminUnauthorizedTotal = expvar.NewInt("admin_unauthorized_total")
)
