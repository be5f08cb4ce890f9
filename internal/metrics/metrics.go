package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total number of settle calls by result",
		},
		[]string{"result"},
	)

	CreditedKopeksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credited_kopeks_total",
			Help: "Total income credited to customer balances, in kopeks",
		},
	)

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by scope",
		},
		[]string{"scope"},
	)
)

const (
	ResultCredited = "credited"
	ResultNoop     = "noop"
	ResultSkipped  = "skipped"
	ResultInvalid  = "invalid"
	ResultFailed   = "failed"

	ScopeAccount = "account"
	ScopeGlobal  = "global"
)
