package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrEmptyCredentials   ErrCode = "EMPTY_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrMediaInactive     ErrCode = "MEDIA_INACTIVE"
	ErrPairingPending    ErrCode = "PAIRING_PENDING"
	ErrGuidelinesPending ErrCode = "GUIDELINES_PENDING"
	ErrAlreadyStarted    ErrCode = "ALREADY_STARTED"
	ErrNotInProgress     ErrCode = "NOT_IN_PROGRESS"
	ErrExamIncomplete    ErrCode = "EXAM_INCOMPLETE"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"

	// ─── Media devices ─────────────────────────────────────────────────
	ErrPermissionDenied ErrCode = "MEDIA_PERMISSION_DENIED"
	ErrDeviceNotFound   ErrCode = "MEDIA_DEVICE_NOT_FOUND"
	ErrMediaFailed      ErrCode = "MEDIA_ACQUISITION_FAILED"

	// ─── Advisory ──────────────────────────────────────────────────────
	ErrInvalidFrame        ErrCode = "INVALID_FRAME"
	ErrAdvisoryUnavailable ErrCode = "ADVISORY_UNAVAILABLE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrEmptyCredentials:
		return "Please enter both username and password."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrMediaInactive:
		return "Please grant webcam & microphone access to start the exam."
	case ErrPairingPending:
		return "Please scan the QR code with your mobile device and confirm before starting."
	case ErrGuidelinesPending:
		return "You must agree to the exam guidelines to start the exam."
	case ErrAlreadyStarted:
		return "The exam session has already started."
	case ErrNotInProgress:
		return "The exam session is not in progress."
	case ErrExamIncomplete:
		return "Please answer all questions before submitting."
	case ErrUnknownQuestion:
		return "The question does not exist."

	// ─── Media devices ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Camera permission was denied. Please grant permission to continue."
	case ErrDeviceNotFound:
		return "No camera was found. Please ensure a camera is connected and available."
	case ErrMediaFailed:
		return "An error occurred while accessing the camera."

	// ─── Advisory ──────────────────────────────────────────────────────
	case ErrInvalidFrame:
		return "The frame must be a base64 data URI with an explicit MIME type."
	case ErrAdvisoryUnavailable:
		return "Frame analysis is temporarily unavailable."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
