// internal/scheduler/autorelease_test.go
package scheduler

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
	"github.com/collabhub/collab-backend/internal/services"
)

func setup(t *testing.T) (*gorm.DB, *AutoRelease) {
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

	cfg := &config.Config{
		Escrow: config.EscrowConfig{
			ReleaseDelay:      time.Hour,
			SchedulerInterval: time.Minute,
		},
	}

	events := services.NewEventService(db, nil)
	agreements := services.NewAgreementService(db, events)
	payments := services.NewPaymentService(db, events, agreements)

	return db, NewAutoRelease(payments, cfg)
}

// seedInitiatedPayment creates an active agreement with a completed milestone
// and an INITIATED payment whose holding period started at the given time.
func seedInitiatedPayment(t *testing.T, db *gorm.DB, initiatedAt time.Time) *models.Payment {
	t.Helper()

	fulfillerID := uuid.New()
	agreement := &models.Agreement{
		SponsorID:      uuid.New(),
		FulfillerID:    &fulfillerID,
		FulfillerEmail: "creator@example.com",
		Title:          "Launch video",
		TotalAmount:    500,
		Currency:       "USD",
		Status:         models.AgreementStatusActive,
	}
	require.NoError(t, db.Create(agreement).Error)

	now := time.Now()
	milestone := &models.Milestone{
		AgreementID:    agreement.ID,
		Title:          "Deliver final cut",
		Amount:         500,
		DeliverableIDs: models.UUIDList{uuid.New()},
		Status:         models.MilestoneStatusCompleted,
		ApprovedAt:     &now,
	}
	require.NoError(t, db.Create(milestone).Error)

	payment := &models.Payment{
		AgreementID: agreement.ID,
		MilestoneID: milestone.ID,
		SponsorID:   agreement.SponsorID,
		FulfillerID: fulfillerID,
		Amount:      500,
		Status:      models.PaymentStatusInitiated,
	}
	require.NoError(t, db.Create(payment).Error)
	require.NoError(t, db.Model(payment).UpdateColumn("updated_at", initiatedAt).Error)

	return payment
}

func TestRunOnceReleasesDuePaymentExactlyOnce(t *testing.T) {
	db, autoRelease := setup(t)
	payment := seedInitiatedPayment(t, db, time.Now().Add(-2*time.Hour))

	autoRelease.RunOnce()
	autoRelease.RunOnce()

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, "id = ?", payment.ID).Error)
	require.Equal(t, models.PaymentStatusReleased, reloaded.Status)
	require.NotNil(t, reloaded.ReleasedAt)

	var ledgerCount int64
	require.NoError(t, db.Model(&models.EventLog{}).
		Where("entity_id = ? AND action = ?", payment.ID, models.ActionPaymentReleased).
		Count(&ledgerCount).Error)
	require.Equal(t, int64(1), ledgerCount)

	// The release also completed the agreement.
	var agreement models.Agreement
	require.NoError(t, db.First(&agreement, "id = ?", payment.AgreementID).Error)
	require.Equal(t, models.AgreementStatusCompleted, agreement.Status)
}

func TestRunOnceSkipsPaymentsInsideHoldingPeriod(t *testing.T) {
	db, autoRelease := setup(t)
	payment := seedInitiatedPayment(t, db, time.Now())

	autoRelease.RunOnce()

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, "id = ?", payment.ID).Error)
	require.Equal(t, models.PaymentStatusInitiated, reloaded.Status)
}
