package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/payout"
)

// StripeGateway is a thin wrapper around stripe-go. Collections become
// PaymentIntents and payouts become Payouts; the external reference
// travels in metadata so webhook events can be matched back to the
// pending ledger entry.
type StripeGateway struct{}

// NewStripeGateway initializes the global stripe client with the secret key
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

// Collect creates a PaymentIntent charging the user
func (g *StripeGateway) Collect(_ context.Context, userID uuid.UUID, amount float64, currency, externalRef string) error {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(amount)),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("external_ref", externalRef)
	params.AddMetadata("user_id", userID.String())

	if _, err := paymentintent.New(params); err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}
	return nil
}

// Payout creates a Payout to the user's connected account
func (g *StripeGateway) Payout(_ context.Context, userID uuid.UUID, amount float64, currency, externalRef string) error {
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(toMinorUnits(amount)),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("external_ref", externalRef)
	params.AddMetadata("user_id", userID.String())

	if _, err := payout.New(params); err != nil {
		return fmt.Errorf("create payout: %w", err)
	}
	return nil
}

// XAF has no minor units; Stripe still expects integer amounts
func toMinorUnits(amount float64) int64 {
	return int64(amount)
}
