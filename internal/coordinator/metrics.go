package coordinator

import "expvar"

var (
	metricJoinTotal       = expvar.NewInt("join_total")
	metricJoinErrors      = expvar.NewInt("join_errors_total")
	metricSessionsFormed  = expvar.NewInt("sessions_formed_total")
	metricSessionsAborted = expvar.NewInt("sessions_aborted_total")
	metricSessionsSettled = expvar.NewInt("sessions_settled_total")
	metricActionTotal     = expvar.NewInt("action_submit_total")
	metricActionErrors    = expvar.NewInt("action_submit_errors_total")
	metricTurnTimeouts    = expvar.NewInt("turn_timeouts_total")
	metricSettleRetries   = expvar.NewInt("settle_retry_total")
	metricLedgerErrors    = expvar.NewInt("ledger_errors_total")
	metricBuyInUnknown    = expvar.NewInt("buyin_outcome_unknown_total")
	metricHandlerPanics   = expvar.NewInt("coordinator_panics_total")
	metricSessionsActive  = expvar.NewInt("sessions_active")
)
