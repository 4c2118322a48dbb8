package models

// WriteStatus is the outcome of a trip write request.
type WriteStatus string

const (
	StatusAccepted             WriteStatus = "accepted"
	StatusAcceptedWithWarnings WriteStatus = "accepted_with_warnings"
	StatusRejected             WriteStatus = "rejected"
	StatusSoftDeleted          WriteStatus = "soft_deleted"
)

// Rejection reason codes. A rejected write persists no state.
const (
	ReasonNegativeOdometerGap     = "NegativeOdometerGap"
	ReasonTimeOverlap             = "TimeOverlap"
	ReasonInvalidDateOrder        = "InvalidDateOrder"
	ReasonMissingFuelForRefueling = "MissingFuelForRefueling"
)

// Warning codes. Warnings are recorded for audit but never block a write.
const (
	WarnLargeOdometerGap  = "LargeOdometerGap"
	WarnHighDailyDistance = "HighDailyDistance"
	WarnLowOrHighMileage  = "LowOrHighMileage"
)

// Quality flag codes accumulated by the scorer.
const (
	FlagMissingDriver      = "missing_driver"
	FlagMissingPurpose     = "missing_purpose"
	FlagMissingFuel        = "missing_fuel_quantity"
	FlagMissingLoadWeight  = "missing_load_weight"
	FlagOdometerOrder      = "invalid_odometer_order"
	FlagDateOrder          = "invalid_date_order"
	FlagImplausibleMileage = "implausible_mileage"
	FlagLongDuration       = "unusually_long_duration"
	FlagExcessiveDistance  = "excessive_daily_distance"
	FlagMileageAnomaly     = "mileage_anomaly"
)

// Warning is a non-fatal validation finding attached to a successful write.
type Warning struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// WriteResult is returned for every submit/update/delete request.
type WriteResult struct {
	Status   WriteStatus `json:"status"`
	TripID   string      `json:"trip_id,omitempty"`
	Reason   string      `json:"reason,omitempty"` // set when Status is rejected
	Warnings []Warning   `json:"warnings,omitempty"`
}
