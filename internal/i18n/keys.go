package i18n

// Request and transport errors.
const (
	ErrKeyInvalidRequest     = "error.invalid_request"
	ErrKeyInvalidRequestBody = "error.invalid_request_body"
	ErrKeyValidation         = "error.validation_error"
	ErrKeyNotFound           = "error.not_found"
	ErrKeyRateLimitExceeded  = "error.rate_limit_exceeded"
	ErrKeyTimeout            = "error.timeout"
	ErrKeyInternalError      = "error.internal_error"
	// ErrKeyUnavailable is served while a dependency's circuit is open.
	ErrKeyUnavailable = "error.unavailable"
)

// Authentication and authorization errors.
const (
	ErrKeyUnauthorized   = "error.unauthorized"
	ErrKeyAPIKeyRequired = "error.api_key_required"
	ErrKeyInvalidAPIKey  = "error.invalid_api_key"
	ErrKeyTokenRequired  = "error.token_required"
	ErrKeyInvalidToken   = "error.invalid_token"
	ErrKeyForbidden      = "error.forbidden"
)

// Planning and allocation errors.
const (
	ErrKeyCapacityExceeded  = "error.capacity_exceeded"
	ErrKeyInvalidTransition = "error.invalid_transition"
	ErrKeyInfeasible        = "error.infeasible_allocation"
	ErrKeyConflict          = "error.conflict"

	// Conflict reasons are looked up as ErrKeyConflict + "." + reason.
	ErrKeyPalletAlreadyAssigned = "error.conflict.pallet_already_assigned"
	ErrKeyTruckBusy             = "error.conflict.truck_busy"
	ErrKeyDuplicateID           = "error.conflict.duplicate_id"
	ErrKeyOrderClosed           = "error.conflict.order_closed"
	ErrKeyOrderInProgress       = "error.conflict.order_in_progress"
	ErrKeyTruckInactive         = "error.conflict.truck_inactive"
	ErrKeyTripLocked            = "error.conflict.trip_locked"
	ErrKeyPalletInUse           = "error.conflict.pallet_in_use"
	ErrKeyAddressInUse          = "error.conflict.address_in_use"
)
