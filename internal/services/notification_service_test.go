// internal/services/notification_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/models"
)

type NotificationServiceTestSuite struct {
	suite.Suite
	db            *gorm.DB
	notifications *NotificationService
}

func (suite *NotificationServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.notifications = NewNotificationService(suite.db, newTestConfig())
}

func (suite *NotificationServiceTestSuite) TestDispatchCreatesNotification() {
	recipient := uuid.New()
	entry := &models.EventLog{
		ActorType:  models.ActorTypeSponsor,
		Action:     models.ActionAgreementSent,
		EntityType: models.EntityTypeAgreement,
		EntityID:   uuid.New(),
		Metadata: models.JSONB{
			"title":        "Launch video",
			"recipient_id": recipient.String(),
		},
	}

	suite.notifications.Dispatch(entry)

	list, err := suite.notifications.ListForUser(recipient, 10)
	suite.NoError(err)
	suite.Len(list, 1)
	suite.Equal("New collaboration agreement", list[0].Title)
	suite.Equal(string(models.ActionAgreementSent), list[0].Type)
	suite.Equal("unread", list[0].Status)
}

func (suite *NotificationServiceTestSuite) TestDispatchWithoutRecipientIsSilent() {
	entry := &models.EventLog{
		ActorType:  models.ActorTypeSystem,
		Action:     models.ActionPaymentReleased,
		EntityType: models.EntityTypePayment,
		EntityID:   uuid.New(),
		Metadata:   models.JSONB{"title": "m"},
	}

	suite.notifications.Dispatch(entry)

	var count int64
	suite.NoError(suite.db.Model(&models.Notification{}).Count(&count).Error)
	suite.Equal(int64(0), count)
}

func (suite *NotificationServiceTestSuite) TestMarkReadScopedToOwner() {
	recipient := uuid.New()
	entry := &models.EventLog{
		ActorType:  models.ActorTypeSponsor,
		Action:     models.ActionMilestoneApproved,
		EntityType: models.EntityTypeMilestone,
		EntityID:   uuid.New(),
		Metadata:   models.JSONB{"recipient_id": recipient.String(), "title": "m"},
	}
	suite.notifications.Dispatch(entry)

	list, err := suite.notifications.ListForUser(recipient, 10)
	suite.NoError(err)
	suite.Require().Len(list, 1)

	// Someone else cannot flip it.
	err = suite.notifications.MarkRead(uuid.New(), list[0].ID)
	suite.ErrorIs(err, ErrNotFound)

	suite.NoError(suite.notifications.MarkRead(recipient, list[0].ID))

	list, err = suite.notifications.ListForUser(recipient, 10)
	suite.NoError(err)
	suite.Equal("read", list[0].Status)
}

func TestNotificationServiceSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceTestSuite))
}
