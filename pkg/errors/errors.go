package errors

import "errors"

// Definition carries a stable business error code plus a default message.
type Definition struct {
	Code    string
	Message string
}

func (d Definition) Error() string {
	return d.Message
}

// External capability failures.
var (
	InvalidAddress    = Definition{Code: "INVALID_ADDRESS", Message: "Address could not be resolved to coordinates"}
	OracleUnavailable = Definition{Code: "ORACLE_UNAVAILABLE", Message: "Travel time lookup failed"}
	DeliveryFailed    = Definition{Code: "DELIVERY_FAILED", Message: "SMS delivery failed"}
	StoreUnavailable  = Definition{Code: "STORE_UNAVAILABLE", Message: "Alert store unavailable"}
	StaleAlert        = Definition{Code: "STALE_ALERT", Message: "Alert missing or no longer active"}
)

// Booking failures. NoDriversAvailable, CategoryUnavailable and
// AllocationTimeout are the user-distinguishable subtypes of BookingFailed.
var (
	BookingFailed       = Definition{Code: "BOOKING_FAILED", Message: "Ride booking failed"}
	NoDriversAvailable  = Definition{Code: "NO_DRIVERS_AVAILABLE", Message: "No drivers available"}
	CategoryUnavailable = Definition{Code: "CATEGORY_UNAVAILABLE", Message: "Ride category not available"}
	AllocationTimeout   = Definition{Code: "ALLOCATION_TIMEOUT", Message: "Booking timed out before a driver was assigned"}
	BookingCancelled    = Definition{Code: "BOOKING_CANCELLED", Message: "Booking was cancelled"}
)

// Request-layer validation errors, rejected before any pipeline work begins.
var (
	MissingFields        = Definition{Code: "MISSING_REQUIRED_FIELDS", Message: "Missing required fields including username"}
	UsernameTaken        = Definition{Code: "USERNAME_TAKEN", Message: "This username is already taken by another user"}
	ActiveAlertExists    = Definition{Code: "ACTIVE_ALERT_EXISTS", Message: "You already have an active alert with this username"}
	AlertNotFound        = Definition{Code: "ALERT_NOT_FOUND", Message: "Alert not found or already inactive"}
	AlertAlreadyActive   = Definition{Code: "ALERT_ALREADY_ACTIVE", Message: "Alert is already active"}
	AuthRequired         = Definition{Code: "RIDE_AUTH_REQUIRED", Message: "Auto-booking requires ride provider authentication"}
	InvalidThreshold     = Definition{Code: "INVALID_THRESHOLD", Message: "Threshold minutes must be a positive number"}
	FinalThresholdTooLow = Definition{Code: "FINAL_THRESHOLD_TOO_LOW", Message: "Final threshold is below the allowed minimum"}
)

// Lookup indexes definitions by code.
var Lookup = map[string]Definition{
	InvalidAddress.Code:       InvalidAddress,
	OracleUnavailable.Code:    OracleUnavailable,
	DeliveryFailed.Code:       DeliveryFailed,
	StoreUnavailable.Code:     StoreUnavailable,
	StaleAlert.Code:           StaleAlert,
	BookingFailed.Code:        BookingFailed,
	NoDriversAvailable.Code:   NoDriversAvailable,
	CategoryUnavailable.Code:  CategoryUnavailable,
	AllocationTimeout.Code:    AllocationTimeout,
	BookingCancelled.Code:     BookingCancelled,
	MissingFields.Code:        MissingFields,
	UsernameTaken.Code:        UsernameTaken,
	ActiveAlertExists.Code:    ActiveAlertExists,
	AlertNotFound.Code:        AlertNotFound,
	AlertAlreadyActive.Code:   AlertAlreadyActive,
	AuthRequired.Code:         AuthRequired,
	InvalidThreshold.Code:     InvalidThreshold,
	FinalThresholdTooLow.Code: FinalThresholdTooLow,
}

// Get returns the Definition for a code, or a generic one when unknown.
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// AsDefinition extracts a Definition from err, unwrapping as needed.
func AsDefinition(err error) (Definition, bool) {
	var d Definition
	ok := errors.As(err, &d)
	return d, ok
}

// Is reports whether err is (or wraps) the given definition.
func Is(err error, def Definition) bool {
	var d Definition
	return errors.As(err, &d) && d.Code == def.Code
}
