// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/config"
	"github.com/collabhub/collab-backend/internal/models"
)

// NotificationService is the dispatcher behind the ledger: it turns an
// allowlisted event entry into an in-app notification row and, when a
// recipient email is known, an outbound email. Recipient routing comes from
// the entry's metadata contract (recipient_id / recipient_email).
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// Dispatch implements the Notifier trigger contract. It is invoked once per
// ledger entry; failures are logged, never propagated back into the
// lifecycle operation that produced the entry.
func (s *NotificationService) Dispatch(entry *models.EventLog) {
	title, message := s.describe(entry)

	if recipientID, ok := metadataUUID(entry.Metadata, "recipient_id"); ok {
		entityID := entry.EntityID
		notification := &models.Notification{
			UserID:            recipientID,
			Type:              string(entry.Action),
			Title:             title,
			Message:           message,
			RelatedEntityType: string(entry.EntityType),
			RelatedEntityID:   &entityID,
		}
		if err := s.db.Create(notification).Error; err != nil {
			logrus.WithError(err).WithField("action", entry.Action).Error("Failed to create notification")
		}
	}

	if email, ok := metadataString(entry.Metadata, "recipient_email"); ok && email != "" {
		if err := s.sendTemplatedEmail(entry, email, title); err != nil {
			logrus.WithError(err).WithField("action", entry.Action).Error("Failed to send notification email")
		}
	}
}

func (s *NotificationService) describe(entry *models.EventLog) (title, message string) {
	entityTitle, _ := metadataString(entry.Metadata, "title")

	switch entry.Action {
	case models.ActionAgreementSent:
		return "New collaboration agreement", fmt.Sprintf("You received the agreement %q. Review and respond to start working.", entityTitle)
	case models.ActionAgreementAccepted:
		return "Agreement accepted", fmt.Sprintf("Your agreement %q was accepted. Work can begin.", entityTitle)
	case models.ActionAgreementRejected:
		return "Agreement declined", fmt.Sprintf("Your agreement %q was declined.", entityTitle)
	case models.ActionDeliverableSubmitted:
		return "Deliverables submitted", fmt.Sprintf("Work on milestone %q was submitted for your review.", entityTitle)
	case models.ActionMilestoneApproved:
		return "Milestone approved", fmt.Sprintf("Milestone %q was approved. Payment is now held in escrow.", entityTitle)
	case models.ActionMilestoneRevisionRequested:
		return "Revision requested", fmt.Sprintf("The sponsor requested changes on milestone %q.", entityTitle)
	case models.ActionPaymentInitiated:
		return "Payment initiated", fmt.Sprintf("Payment for milestone %q was initiated and will be released after the holding period.", entityTitle)
	case models.ActionPaymentReleased:
		return "Payment released", fmt.Sprintf("Payment for milestone %q was released to your balance.", entityTitle)
	case models.ActionPayoutCompleted:
		return "Payout completed", "Your payout was processed and is on the way."
	default:
		return string(entry.Action), string(entry.Action)
	}
}

func (s *NotificationService) sendTemplatedEmail(entry *models.EventLog, to, subject string) error {
	tpl := s.getEmailTemplate(entry.Action)

	data := map[string]interface{}{
		"Title":        subject,
		"PlatformName": s.config.Email.FromName,
		"BaseURL":      s.config.Frontend.BaseURL,
	}
	for k, v := range entry.Metadata {
		data[k] = v
	}

	body, err := s.renderTemplate(tpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(to, subject, body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email delivery skipped (SMTP not configured)")
		return nil
	}

	// Setup authentication
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	// Compose message
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	// Send email
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(action models.EventAction) EmailTemplate {
	templates := map[models.EventAction]EmailTemplate{
		models.ActionAgreementSent: {
			Subject: "New collaboration agreement",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>You received a collaboration agreement</h2>
	<p>The agreement "{{.title}}" is waiting for your response.</p>
	<a href="{{.BaseURL}}/agreements/{{.agreement_id}}">Review Agreement</a>
	<p>Best regards,<br>{{.PlatformName}} Team</p>
</body>
</html>`,
		},
		models.ActionPaymentReleased: {
			Subject: "Payment released",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Payment released</h2>
	<p>The payment for milestone "{{.title}}" has been released to your balance.</p>
	<a href="{{.BaseURL}}/balance">View Balance</a>
	<p>Best regards,<br>{{.PlatformName}} Team</p>
</body>
</html>`,
		},
	}

	if tpl, exists := templates[action]; exists {
		return tpl
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Title}}</p>",
	}
}

// MarkRead flips one in-app notification to read for its owner.
func (s *NotificationService) MarkRead(userID, notificationID uuid.UUID) error {
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{"status": "read", "read_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: notification", ErrNotFound)
	}
	return nil
}

// ListForUser returns a user's in-app notifications, newest first.
func (s *NotificationService) ListForUser(userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var notifications []models.Notification
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, nil
}

func metadataString(m models.JSONB, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	if v, ok := m[key]; ok {
		if str, ok := v.(string); ok {
			return str, true
		}
	}
	return "", false
}

func metadataUUID(m models.JSONB, key string) (uuid.UUID, bool) {
	str, ok := metadataString(m, key)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
