// internal/services/payout_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/collabhub/collab-backend/internal/models"
)

type PayoutServiceTestSuite struct {
	suite.Suite
	f *fixture
}

func (suite *PayoutServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
}

// seedReleasedPayment inserts a released payment directly; payout math only
// looks at the payment rows.
func (suite *PayoutServiceTestSuite) seedReleasedPayment(amount float64) {
	payment := &models.Payment{
		AgreementID: uuid.New(),
		MilestoneID: uuid.New(),
		SponsorID:   suite.f.sponsor.ID,
		FulfillerID: suite.f.fulfiller.ID,
		Amount:      amount,
		Status:      models.PaymentStatusReleased,
	}
	suite.Require().NoError(suite.f.db.Create(payment).Error)
}

func (suite *PayoutServiceTestSuite) TestBalanceMath() {
	suite.seedReleasedPayment(500)
	suite.seedReleasedPayment(250)

	// A pending payment must not count as earned.
	pending := &models.Payment{
		AgreementID: uuid.New(),
		MilestoneID: uuid.New(),
		SponsorID:   suite.f.sponsor.ID,
		FulfillerID: suite.f.fulfiller.ID,
		Amount:      999,
		Status:      models.PaymentStatusPending,
	}
	suite.Require().NoError(suite.f.db.Create(pending).Error)

	balance, err := suite.f.payouts.ComputeBalance(suite.f.fulfiller.ID)
	suite.NoError(err)
	suite.Equal(750.0, balance.TotalEarned)
	suite.Equal(0.0, balance.Locked)
	suite.Equal(0.0, balance.PaidOut)
	suite.Equal(750.0, balance.Available)

	payout, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 300})
	suite.NoError(err)
	suite.Equal(models.PayoutStatusRequested, payout.Status)

	balance, err = suite.f.payouts.ComputeBalance(suite.f.fulfiller.ID)
	suite.NoError(err)
	suite.Equal(300.0, balance.Locked)
	suite.Equal(450.0, balance.Available)
}

func (suite *PayoutServiceTestSuite) TestRequestExceedingAvailableFails() {
	suite.seedReleasedPayment(500)

	_, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 500})
	suite.NoError(err)

	// The first request locked the full balance; even one unit more fails.
	_, err = suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 1})
	suite.ErrorIs(err, ErrValidation)

	balance, err := suite.f.payouts.ComputeBalance(suite.f.fulfiller.ID)
	suite.NoError(err)
	suite.Equal(0.0, balance.Available)
}

func (suite *PayoutServiceTestSuite) TestRequestedPayoutSuppressesNotification() {
	suite.seedReleasedPayment(100)

	payout, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 100})
	suite.NoError(err)

	// The ledger entry exists, but the action is outside the dispatcher
	// allowlist.
	entries := suite.f.ledgerEntries(suite.T(), models.EntityTypePayout, payout.ID, models.ActionPayoutRequested)
	suite.Len(entries, 1)
	suite.False(notifiableActions[models.ActionPayoutRequested])
}

func (suite *PayoutServiceTestSuite) TestAdvanceHappyPath() {
	suite.seedReleasedPayment(400)
	payout, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 400})
	suite.NoError(err)

	processed, err := suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionProcess})
	suite.NoError(err)
	suite.Equal(models.PayoutStatusProcessing, processed.Status)

	// PROCESS again is a no-op success.
	again, err := suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionProcess})
	suite.NoError(err)
	suite.Equal(models.PayoutStatusProcessing, again.Status)
	suite.Len(suite.f.ledgerEntries(suite.T(), models.EntityTypePayout, payout.ID, models.ActionPayoutProcessing), 1)

	completed, err := suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionComplete})
	suite.NoError(err)
	suite.Equal(models.PayoutStatusCompleted, completed.Status)
	suite.NotEmpty(completed.GatewayRef)
	suite.NotNil(completed.ProcessedAt)

	balance, err := suite.f.payouts.ComputeBalance(suite.f.fulfiller.ID)
	suite.NoError(err)
	suite.Equal(400.0, balance.PaidOut)
	suite.Equal(0.0, balance.Available)
}

func (suite *PayoutServiceTestSuite) TestCompleteCannotSkipProcessing() {
	suite.seedReleasedPayment(100)
	payout, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 100})
	suite.NoError(err)

	_, err = suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionComplete})
	suite.ErrorIs(err, ErrStateConflict)
}

func (suite *PayoutServiceTestSuite) TestFailFromRequestedUnlocksBalance() {
	suite.seedReleasedPayment(100)
	payout, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 100})
	suite.NoError(err)

	failed, err := suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionFail})
	suite.NoError(err)
	suite.Equal(models.PayoutStatusFailed, failed.Status)

	// Failed payouts neither lock nor count as paid out.
	balance, err := suite.f.payouts.ComputeBalance(suite.f.fulfiller.ID)
	suite.NoError(err)
	suite.Equal(100.0, balance.Available)
}

func (suite *PayoutServiceTestSuite) TestFailAfterCompleteRejected() {
	suite.seedReleasedPayment(100)
	payout, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 100})
	suite.NoError(err)

	_, err = suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionProcess})
	suite.NoError(err)
	_, err = suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionComplete})
	suite.NoError(err)

	_, err = suite.f.payouts.Advance(suite.f.system, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionFail})
	suite.ErrorIs(err, ErrStateConflict)
}

func (suite *PayoutServiceTestSuite) TestAdvanceRequiresSystem() {
	suite.seedReleasedPayment(100)
	payout, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 100})
	suite.NoError(err)

	_, err = suite.f.payouts.Advance(suite.f.fulfiller, payout.ID, &AdvancePayoutRequest{Action: models.PayoutActionProcess})
	suite.ErrorIs(err, ErrUnauthorized)
}

func (suite *PayoutServiceTestSuite) TestAvailableNeverNegative() {
	suite.seedReleasedPayment(100)
	_, err := suite.f.payouts.Request(suite.f.fulfiller, &RequestPayoutRequest{Amount: 100})
	suite.NoError(err)

	// Force an inconsistency: remove the earned payment under the payout.
	suite.Require().NoError(suite.f.db.Where("fulfiller_id = ?", suite.f.fulfiller.ID).Delete(&models.Payment{}).Error)

	balance, err := suite.f.payouts.ComputeBalance(suite.f.fulfiller.ID)
	suite.NoError(err)
	suite.Equal(0.0, balance.Available)
}

func TestPayoutServiceSuite(t *testing.T) {
	suite.Run(t, new(PayoutServiceTestSuite))
}
