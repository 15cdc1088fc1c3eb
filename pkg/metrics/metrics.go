package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters. HTTP-level metrics live in the middleware; these
// track marketplace outcomes regardless of transport.
var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftride_rides_requested_total",
		Help: "Total ride requests created",
	})

	OffersBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftride_dispatch_offers_total",
		Help: "Total ride offers broadcast to candidate drivers",
	})

	RidesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftride_rides_matched_total",
		Help: "Total rides accepted by a driver",
	})

	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftride_rides_completed_total",
		Help: "Total rides completed",
	})

	RidesCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swiftride_rides_cancelled_total",
		Help: "Total rides cancelled, by actor",
	}, []string{"cancelled_by"})

	WalletTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftride_wallet_transfers_total",
		Help: "Total completed wallet transfers",
	})

	WebhookDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swiftride_webhook_duplicate_confirmations_total",
		Help: "Webhook confirmations ignored because the transaction was already terminal",
	})
)
