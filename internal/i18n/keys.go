// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeyInternalError = "error.internal"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthTokenIssued        = "auth.token_issued"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationRequired     = "validation.required"
	KeyValidationInvalid      = "validation.invalid"
	KeyValidationMissingField = "validation.missing_field"
	KeyValidationInvalidField = "validation.invalid_field"
	KeyValidationInvalidPrice = "validation.invalid_price"
	KeyValidationInvalidJSON  = "validation.invalid_json"
	KeyRateLimited            = "rate_limit.exceeded"

	// Webhook rejections, suffixed with the rejection reason
	KeyWebhookPrefix         = "webhook."
	KeyWebhookSaved          = "webhook.saved"
	KeyWebhookStorageFailed  = "webhook.storage_failed"
	KeySecurityAlertSubject  = "webhook.alert_subject"
	KeySecurityAlertBody     = "webhook.alert_body"
	KeyConfigurationTitle    = "rings.configuration_title"
	KeyConfigNotFound        = "rings.config_not_found"
	KeyConfigExpiredHint     = "rings.config_expired_hint"
	KeyRingsAddedToCart      = "rings.added_to_cart"
	KeyRingsMappingFailed    = "rings.mapping_failed"
	KeyRingsCartAddFailed    = "rings.cart_add_failed"
	KeyCartTokenRequired     = "cart.token_required"
	KeyCartEmpty             = "cart.empty"
	KeyCheckoutCompleted     = "checkout.completed"
	KeyCheckoutFailed        = "checkout.failed"
	KeyOrderExists           = "checkout.order_exists"
	KeyRingsConfirmationSubj = "rings.confirmation_subject"

	// Ring display metadata
	KeyRingLabel        = "ring.label"
	KeyRingNumber       = "ring.number"
	KeyRingMaterial     = "ring.material"
	KeyRingFinish       = "ring.finish"
	KeyRingWidth        = "ring.width"
	KeyRingWidthValue   = "ring.width_value"
	KeyRingSize         = "ring.size"
	KeyRingEngraving    = "ring.engraving"
	KeyRingStones       = "ring.stones"
	KeyRingBundle       = "ring.bundle"
	KeyRingSummaryTitle = "ring.summary_title"

	// Custom design projects
	KeyProjectTitle              = "project.title"
	KeyProjectSubmitted          = "project.submitted"
	KeyProjectCreationFailed     = "project.creation_failed"
	KeyProjectNotFound           = "project.not_found"
	KeyProjectInvalidStatus      = "project.invalid_status"
	KeyProjectInvalidTransition  = "project.invalid_transition"
	KeyProjectForbidden          = "project.forbidden"
	KeyProjectStatusUpdated      = "project.status_updated"
	KeyProjectUpdateSubject      = "project.update_subject"
	KeyProjectUpdateHeading      = "project.update_heading"
	KeyProjectIntakeSubject      = "project.intake_subject"
	KeyProjectAdminIntakeSubject = "project.admin_intake_subject"
	KeyCommentAdded              = "comment.added"
	KeyCommentFailed             = "comment.failed"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"
	KeyFileRequired      = "file.required"
)
