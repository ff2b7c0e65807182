package httptransport

import "expvar"

var (
	metricSSEConnectionsTotal  = expvar.NewInt("session_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("session_sse_connections_active")
)
