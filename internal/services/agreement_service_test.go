// internal/services/agreement_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/collabhub/collab-backend/internal/models"
)

type AgreementServiceTestSuite struct {
	suite.Suite
	f *fixture
}

func (suite *AgreementServiceTestSuite) SetupTest() {
	suite.f = newFixture(suite.T())
}

func (suite *AgreementServiceTestSuite) TestCreateDraft() {
	agreement, _ := suite.f.createDraft(suite.T(), 500)

	suite.Equal(models.AgreementStatusDraft, agreement.Status)
	suite.Equal(suite.f.sponsor.ID, agreement.SponsorID)
	suite.Nil(agreement.FulfillerID)
	suite.Equal("USD", agreement.Currency)
}

func (suite *AgreementServiceTestSuite) TestCreateRequiresSponsor() {
	_, err := suite.f.agreements.CreateAgreement(suite.f.fulfiller, &CreateAgreementRequest{
		Title:        "x",
		TotalAmount:  10,
		Deliverables: []DeliverableSpec{{Title: "d"}},
	})
	suite.ErrorIs(err, ErrUnauthorized)
}

func (suite *AgreementServiceTestSuite) TestUpdateDraftOnly() {
	agreement, _ := suite.f.createDraft(suite.T(), 500)

	newTitle := "Launch video v2"
	updated, err := suite.f.agreements.UpdateAgreement(suite.f.sponsor, agreement.ID, &UpdateAgreementRequest{Title: &newTitle})
	suite.NoError(err)
	suite.Equal(newTitle, updated.Title)

	_, err = suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.NoError(err)

	_, err = suite.f.agreements.UpdateAgreement(suite.f.sponsor, agreement.ID, &UpdateAgreementRequest{Title: &newTitle})
	suite.ErrorIs(err, ErrStateConflict)
}

func (suite *AgreementServiceTestSuite) TestSendRequiresPolicyTerms() {
	agreement, err := suite.f.agreements.CreateAgreement(suite.f.sponsor, &CreateAgreementRequest{
		Title:        "No terms",
		TotalAmount:  100,
		Deliverables: []DeliverableSpec{{Title: "d"}},
	})
	suite.NoError(err)

	_, err = suite.f.milestones.CreateMilestone(suite.f.sponsor, agreement.ID, &CreateMilestoneRequest{
		Title:          "m",
		Amount:         100,
		DeliverableIDs: []uuid.UUID{agreement.Deliverables[0].ID},
	})
	suite.NoError(err)

	_, err = suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *AgreementServiceTestSuite) TestSendRequiresMilestone() {
	agreement, err := suite.f.agreements.CreateAgreement(suite.f.sponsor, &CreateAgreementRequest{
		Title:        "No milestones",
		TotalAmount:  100,
		PaymentTerms: "terms",
		UsageRights:  "rights",
		Deliverables: []DeliverableSpec{{Title: "d"}},
	})
	suite.NoError(err)

	_, err = suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *AgreementServiceTestSuite) TestSendBindsFulfillerAndWritesLedger() {
	agreement, _ := suite.f.createDraft(suite.T(), 500)

	sent, err := suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.NoError(err)
	suite.Equal(models.AgreementStatusSent, sent.Status)
	suite.Equal(suite.f.fulfiller.ID, *sent.FulfillerID)

	entries := suite.f.ledgerEntries(suite.T(), models.EntityTypeAgreement, agreement.ID, models.ActionAgreementSent)
	suite.Len(entries, 1)
	suite.Equal("creator@example.com", entries[0].Metadata["fulfiller_email"])

	// Second send must hit the state guard.
	_, err = suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.ErrorIs(err, ErrStateConflict)
	suite.Len(suite.f.ledgerEntries(suite.T(), models.EntityTypeAgreement, agreement.ID, models.ActionAgreementSent), 1)
}

func (suite *AgreementServiceTestSuite) TestRespondAccept() {
	agreement, _ := suite.f.createActiveAgreement(suite.T(), 500)

	entries := suite.f.ledgerEntries(suite.T(), models.EntityTypeAgreement, agreement.ID, models.ActionAgreementAccepted)
	suite.Len(entries, 1)
}

func (suite *AgreementServiceTestSuite) TestRespondReject() {
	agreement, _ := suite.f.createDraft(suite.T(), 500)
	_, err := suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.NoError(err)

	rejected, err := suite.f.agreements.Respond(suite.f.fulfiller, agreement.ID, &RespondRequest{Decision: models.RespondDecisionReject})
	suite.NoError(err)
	suite.Equal(models.AgreementStatusRejected, rejected.Status)

	// Terminal: a second response is a state conflict.
	_, err = suite.f.agreements.Respond(suite.f.fulfiller, agreement.ID, &RespondRequest{Decision: models.RespondDecisionAccept})
	suite.ErrorIs(err, ErrStateConflict)
}

func (suite *AgreementServiceTestSuite) TestRespondWrongActor() {
	agreement, _ := suite.f.createDraft(suite.T(), 500)
	_, err := suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.NoError(err)

	stranger := models.Actor{Type: models.ActorTypeFulfiller, ID: uuid.New()}
	_, err = suite.f.agreements.Respond(stranger, agreement.ID, &RespondRequest{Decision: models.RespondDecisionAccept})
	suite.ErrorIs(err, ErrNotFound)

	// The sponsor cannot answer their own invitation.
	_, err = suite.f.agreements.Respond(suite.f.sponsor, agreement.ID, &RespondRequest{Decision: models.RespondDecisionAccept})
	suite.ErrorIs(err, ErrUnauthorized)
}

func (suite *AgreementServiceTestSuite) TestScopedVisibility() {
	agreement, _ := suite.f.createDraft(suite.T(), 500)

	otherSponsor := models.Actor{Type: models.ActorTypeSponsor, ID: uuid.New()}
	_, err := suite.f.agreements.GetAgreement(otherSponsor, agreement.ID)
	suite.ErrorIs(err, ErrNotFound)

	// The fulfiller sees it only once bound.
	_, err = suite.f.agreements.GetAgreement(suite.f.fulfiller, agreement.ID)
	suite.ErrorIs(err, ErrNotFound)

	_, err = suite.f.agreements.Send(suite.f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    suite.f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	suite.NoError(err)

	_, err = suite.f.agreements.GetAgreement(suite.f.fulfiller, agreement.ID)
	suite.NoError(err)
}

func (suite *AgreementServiceTestSuite) TestRecomputeCompletionIdempotent() {
	agreement, milestone := suite.f.createActiveAgreement(suite.T(), 500)
	payment := suite.f.approveMilestone(suite.T(), milestone.ID)

	_, err := suite.f.payments.Initiate(suite.f.sponsor, payment.ID)
	suite.NoError(err)
	_, err = suite.f.payments.Release(suite.f.system, payment.ID)
	suite.NoError(err)

	var reloaded models.Agreement
	suite.NoError(suite.f.db.First(&reloaded, "id = ?", agreement.ID).Error)
	suite.Equal(models.AgreementStatusCompleted, reloaded.Status)

	// Re-running when already completed is a no-op and does not duplicate
	// the ledger entry.
	suite.NoError(suite.f.agreements.RecomputeCompletion(agreement.ID))
	suite.Len(suite.f.ledgerEntries(suite.T(), models.EntityTypeAgreement, agreement.ID, models.ActionAgreementCompleted), 1)
}

func TestAgreementServiceSuite(t *testing.T) {
	suite.Run(t, new(AgreementServiceTestSuite))
}
