package internal

import "expvar"

var (
	eventsTotal   = expvar.NewMap("pipehooks_events_total")
	authFailures  = expvar.NewMap("pipehooks_auth_failures_total")
	parseErrors   = expvar.NewMap("pipehooks_parse_errors_total")
	outcomesTotal = expvar.NewMap("pipehooks_outcomes_total")
	notifyErrors  = expvar.NewMap("pipehooks_notify_errors_total")
)

func IncEvent(provider string) {
	eventsTotal.Add(provider, 1)
}

func IncAuthFailure(provider string) {
	authFailures.Add(provider, 1)
}

func IncParseError(provider string) {
	parseErrors.Add(provider, 1)
}

func IncOutcome(status string) {
	outcomesTotal.Add(status, 1)
}

func IncNotifyError(driver string) {
	notifyErrors.Add(driver, 1)
}
