// internal/services/payment_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/collabhub/collab-backend/internal/models"
)

type PaymentServiceTestSuite struct {
	suite.Suite
	f *fixture
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
}

// Full happy path: draft -> sent -> active -> submit -> approve -> initiate ->
// release, with the agreement completing at the end.
func (suite *PaymentServiceTestSuite) TestFullLifecycle() {
	agreement, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)
	suite.Equal(models.PaymentStatusPending, payment.Status)
	suite.Equal(500.0, payment.Amount)

	initiated, err := suite.f.payments.Initiate(suite.f.sponsor, payment.ID)
	suite.NoError(err)
	suite.Equal(models.PaymentStatusInitiated, initiated.Status)

	released, err := suite.f.payments.Release(suite.f.system, payment.ID)
	suite.NoError(err)
	suite.Equal(models.PaymentStatusReleased, released.Status)
	suite.NotNil(released.ReleasedAt)

	var reloaded models.Agreement
	suite.NoError(suite.f.db.First(&reloaded, "id = ?", agreement.ID).Error)
	suite.Equal(models.AgreementStatusCompleted, reloaded.Status)
}

func (suite *PaymentServiceTestSuite) TestNoPaymentBeforeApproval() {
	_, milestone := suite.f.createActiveAgreement(suite.T(), 500)

	_, err := suite.f.milestones.Submit(suite.f.fulfiller, milestone.ID, &SubmitMilestoneRequest{Note: "v1"})
	suite.NoError(err)

	var count int64
	suite.NoError(suite.f.db.Model(&models.Payment{}).Where("milestone_id = ?", milestone.ID).Count(&count).Error)
	suite.Equal(int64(0), count)
}

func (suite *PaymentServiceTestSuite) TestInitiateRequiresSponsor() {
	_, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)

	_, err := suite.f.payments.Initiate(suite.f.fulfiller, payment.ID)
	suite.ErrorIs(err, ErrUnauthorized)
}

func (suite *PaymentServiceTestSuite) TestInitiateIdempotent() {
	_, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)

	_, err := suite.f.payments.Initiate(suite.f.sponsor, payment.ID)
	suite.NoError(err)

	// A retried initiate finds the payment already moved and succeeds
	// without a second ledger entry.
	again, err := suite.f.payments.Initiate(suite.f.sponsor, payment.ID)
	suite.NoError(err)
	suite.Equal(models.PaymentStatusInitiated, again.Status)
	suite.Len(suite.f.ledgerEntries(suite.T(), models.EntityTypePayment, payment.ID, models.ActionPaymentInitiated), 1)
}

func (suite *PaymentServiceTestSuite) TestReleaseTwiceSingleLedgerEntry() {
	_, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)

	_, err := suite.f.payments.Initiate(suite.f.sponsor, payment.ID)
	suite.NoError(err)

	first, err := suite.f.payments.Release(suite.f.system, payment.ID)
	suite.NoError(err)
	suite.Equal(models.PaymentStatusReleased, first.Status)

	second, err := suite.f.payments.Release(suite.f.system, payment.ID)
	suite.NoError(err)
	suite.Equal(models.PaymentStatusReleased, second.Status)

	suite.Len(suite.f.ledgerEntries(suite.T(), models.EntityTypePayment, payment.ID, models.ActionPaymentReleased), 1)
}

func (suite *PaymentServiceTestSuite) TestReleaseRequiresSystem() {
	_, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)

	_, err := suite.f.payments.Initiate(suite.f.sponsor, payment.ID)
	suite.NoError(err)

	_, err = suite.f.payments.Release(suite.f.sponsor, payment.ID)
	suite.ErrorIs(err, ErrUnauthorized)
}

func (suite *PaymentServiceTestSuite) TestReleaseBeforeInitiateFails() {
	_, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)

	_, err := suite.f.payments.Release(suite.f.system, payment.ID)
	suite.ErrorIs(err, ErrStateConflict)
}

func (suite *PaymentServiceTestSuite) TestReleaseDueIsRepeatable() {
	_, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)

	_, err := suite.f.payments.Initiate(suite.f.sponsor, payment.ID)
	suite.NoError(err)

	// Not yet past the holding period.
	released, err := suite.f.payments.ReleaseDue(time.Hour)
	suite.NoError(err)
	suite.Equal(0, released)

	// Age the payment past the delay.
	suite.NoError(suite.f.db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		UpdateColumn("updated_at", time.Now().Add(-2*time.Hour)).Error)

	released, err = suite.f.payments.ReleaseDue(time.Hour)
	suite.NoError(err)
	suite.Equal(1, released)

	// An immediate second pass finds nothing and writes nothing.
	released, err = suite.f.payments.ReleaseDue(time.Hour)
	suite.NoError(err)
	suite.Equal(0, released)
	suite.Len(suite.f.ledgerEntries(suite.T(), models.EntityTypePayment, payment.ID, models.ActionPaymentReleased), 1)
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}
