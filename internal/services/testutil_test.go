// internal/services/testutil_test.go
package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/collabhub/collab-backend/internal/config"
	"github.com/collabhub/collab-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Agreement{},
		&models.Deliverable{},
		&models.AgreementActivity{},
		&models.Milestone{},
		&models.Payment{},
		&models.Payout{},
		&models.EventLog{},
		&models.Notification{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Escrow: config.EscrowConfig{
			ReleaseDelay:      72 * time.Hour,
			SchedulerInterval: time.Minute,
		},
		Payout: config.PayoutConfig{
			Currency:      "usd",
			MinimumPayout: 1.0,
		},
		Email: config.EmailConfig{
			FromName: "CollabHub",
		},
	}
}

// fixture bundles the service graph over one test database. The event service
// runs without a notifier so tests stay synchronous.
type fixture struct {
	db         *gorm.DB
	cfg        *config.Config
	events     *EventService
	agreements *AgreementService
	milestones *MilestoneService
	payments   *PaymentService
	payouts    *PayoutService

	sponsor   models.Actor
	fulfiller models.Actor
	system    models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	cfg := newTestConfig()
	events := NewEventService(db, nil)
	agreements := NewAgreementService(db, events)

	return &fixture{
		db:         db,
		cfg:        cfg,
		events:     events,
		agreements: agreements,
		milestones: NewMilestoneService(db, events),
		payments:   NewPaymentService(db, events, agreements),
		payouts:    NewPayoutService(db, events, nil, cfg),
		sponsor:    models.Actor{Type: models.ActorTypeSponsor, ID: uuid.New()},
		fulfiller:  models.Actor{Type: models.ActorTypeFulfiller, ID: uuid.New()},
		system:     models.Actor{Type: models.ActorTypeSystem},
	}
}

// createDraft creates a sendable draft: one deliverable, policy terms set,
// one milestone covering the deliverable.
func (f *fixture) createDraft(t *testing.T, amount float64) (*models.Agreement, *models.Milestone) {
	t.Helper()

	agreement, err := f.agreements.CreateAgreement(f.sponsor, &CreateAgreementRequest{
		Title:        "Launch video",
		TotalAmount:  amount,
		PaymentTerms: "Net 30 after approval",
		UsageRights:  "Non-exclusive, worldwide",
		Deliverables: []DeliverableSpec{{Title: "Final cut"}},
	})
	require.NoError(t, err)
	require.Len(t, agreement.Deliverables, 1)

	milestone, err := f.milestones.CreateMilestone(f.sponsor, agreement.ID, &CreateMilestoneRequest{
		Title:          "Deliver final cut",
		Amount:         amount,
		DeliverableIDs: []uuid.UUID{agreement.Deliverables[0].ID},
	})
	require.NoError(t, err)

	return agreement, milestone
}

// createActiveAgreement runs a draft through send and accept.
func (f *fixture) createActiveAgreement(t *testing.T, amount float64) (*models.Agreement, *models.Milestone) {
	t.Helper()

	agreement, milestone := f.createDraft(t, amount)

	_, err := f.agreements.Send(f.sponsor, agreement.ID, &SendAgreementRequest{
		FulfillerID:    f.fulfiller.ID,
		FulfillerEmail: "creator@example.com",
	})
	require.NoError(t, err)

	agreement, err = f.agreements.Respond(f.fulfiller, agreement.ID, &RespondRequest{Decision: models.RespondDecisionAccept})
	require.NoError(t, err)
	require.Equal(t, models.AgreementStatusActive, agreement.Status)

	return agreement, milestone
}

// approveMilestone submits and approves, leaving a PENDING payment behind.
func (f *fixture) approveMilestone(t *testing.T, milestoneID uuid.UUID) *models.Payment {
	t.Helper()

	_, err := f.milestones.Submit(f.fulfiller, milestoneID, &SubmitMilestoneRequest{Note: "done"})
	require.NoError(t, err)

	_, err = f.milestones.Approve(f.sponsor, milestoneID)
	require.NoError(t, err)

	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "milestone_id = ?", milestoneID).Error)
	return &payment
}

func (f *fixture) ledgerEntries(t *testing.T, entityType models.EntityType, entityID uuid.UUID, action models.EventAction) []models.EventLog {
	t.Helper()

	var entries []models.EventLog
	require.NoError(t, f.db.
		Where("entity_type = ? AND entity_id = ? AND action = ?", entityType, entityID, action).
		Order("created_at asc").Find(&entries).Error)
	return entries
}
