// Package metrics регистрирует счётчики prometheus для бизнес-событий.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal считает принятые сообщения по классу квоты.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unsaid_submissions_total",
		Help: "Accepted confession submissions by quota class.",
	}, []string{"quota"})

	// SubmissionsDeniedTotal считает отклонённые попытки отправки.
	SubmissionsDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unsaid_submissions_denied_total",
		Help: "Submissions rejected for lack of entitlement.",
	})

	// DeliveriesTotal считает попытки доставки по транспорту и результату.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unsaid_deliveries_total",
		Help: "Delivery attempts by transport and result.",
	}, []string{"transport", "result"})

	// DeadLetteredTotal считает задачи, ушедшие в dead-очередь.
	DeadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unsaid_deliveries_dead_lettered_total",
		Help: "Delivery tasks moved to the dead queue after exhausting retries.",
	})
)
