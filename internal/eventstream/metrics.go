package eventstream

import "expvar"

var (
	metricStreamClientsActive = expvar.NewInt("event_stream_clients_active")
	metricStreamDroppedTotal  = expvar.NewInt("event_stream_dropped_total")
)
