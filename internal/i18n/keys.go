// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// System credential
	KeySystemAccessDenied = "system.access_denied"

	// Agreements
	KeyAgreementCreated   = "agreement.created"
	KeyAgreementUpdated   = "agreement.updated"
	KeyAgreementNotFound  = "agreement.not_found"
	KeyAgreementSent      = "agreement.sent"
	KeyAgreementAccepted  = "agreement.accepted"
	KeyAgreementRejected  = "agreement.rejected"
	KeyAgreementCompleted = "agreement.completed"

	// Milestones
	KeyMilestoneCreated           = "milestone.created"
	KeyMilestoneNotFound          = "milestone.not_found"
	KeyMilestoneSubmitted         = "milestone.submitted"
	KeyMilestoneApproved          = "milestone.approved"
	KeyMilestoneRevisionRequested = "milestone.revision_requested"
	KeyMilestoneDeleted           = "milestone.deleted"

	// Payments
	KeyPaymentNotFound  = "payment.not_found"
	KeyPaymentInitiated = "payment.initiated"
	KeyPaymentReleased  = "payment.released"

	// Payouts
	KeyPayoutNotFound      = "payout.not_found"
	KeyPayoutRequested     = "payout.requested"
	KeyPayoutAdvanced      = "payout.advanced"
	KeyPayoutInvalidAmount = "payout.invalid_amount"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
)
