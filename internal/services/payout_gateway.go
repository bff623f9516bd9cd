// internal/services/payout_gateway.go
package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v74"
	stripepayout "github.com/stripe/stripe-go/v74/payout"

	"github.com/collabhub/collab-backend/internal/models"
)

// PayoutGateway moves money off-platform when a payout completes. The
// lifecycle treats the returned reference as opaque.
type PayoutGateway interface {
	SendPayout(payout *models.Payout) (ref string, err error)
}

// StripeGateway issues payouts through Stripe's payout API.
type StripeGateway struct {
	currency string
}

func NewStripeGateway(secretKey, currency string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{currency: currency}
}

func (g *StripeGateway) SendPayout(p *models.Payout) (string, error) {
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(int64(p.Amount * 100)),
		Currency: stripe.String(g.currency),
	}
	params.AddMetadata("payout_id", p.ID.String())
	params.AddMetadata("fulfiller_id", p.FulfillerID.String())

	result, err := stripepayout.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe payout failed: %w", err)
	}
	return result.ID, nil
}

// NoopGateway stands in when no payment processor is configured, for example
// in development or tests. It records the completion locally and returns a
// synthetic reference.
type NoopGateway struct{}

func (NoopGateway) SendPayout(p *models.Payout) (string, error) {
	logrus.WithFields(logrus.Fields{
		"payout_id": p.ID,
		"amount":    p.Amount,
	}).Info("Payout gateway not configured; marking payout as sent")
	return fmt.Sprintf("noop_%s", p.ID), nil
}
