// internal/models/common_test.go
package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The schema must migrate on sqlite as well as postgres; IDs come from
// BeforeCreate, not from a database-side default.
func TestSchemaMigratesWithClientSideIDs(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&Agreement{},
		&Deliverable{},
		&AgreementActivity{},
		&Milestone{},
		&Payment{},
		&Payout{},
		&EventLog{},
		&Notification{},
	))

	n := &Notification{
		UserID:  uuid.New(),
		Type:    "AGREEMENT_SENT",
		Title:   "New collaboration agreement",
		Message: "m",
	}
	require.NoError(t, db.Create(n).Error)
	require.NotEqual(t, uuid.Nil, n.ID)

	var reloaded Notification
	require.NoError(t, db.First(&reloaded, "id = ?", n.ID).Error)
	require.Equal(t, n.ID, reloaded.ID)
}
