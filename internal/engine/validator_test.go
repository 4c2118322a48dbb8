package engine

import (
	"testing"
	"time"

	"github.com/fleetops/tripledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var day1 = time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

func tripAt(vehicleID string, start, end time.Time, startKm, endKm float64) models.Trip {
	return models.Trip{
		ID:        primitive.NewObjectID(),
		VehicleID: vehicleID,
		DriverID:  "drv-1",
		StartTime: start,
		EndTime:   end,
		StartKm:   startKm,
		EndKm:     endKm,
	}
}

func TestValidateRejectsInvalidDateOrder(t *testing.T) {
	v := NewValidator(DefaultConfig())
	candidate := tripAt("v1", day1.Add(10*time.Hour), day1.Add(8*time.Hour), 100, 150)

	_, rej := v.Validate(&candidate, nil, nil, nil)
	require.NotNil(t, rej)
	assert.Equal(t, models.ReasonInvalidDateOrder, rej.Reason)
}

func TestValidateRejectsMissingFuel(t *testing.T) {
	v := NewValidator(DefaultConfig())
	candidate := tripAt("v1", day1, day1.Add(2*time.Hour), 100, 150)
	candidate.IsRefueling = true

	_, rej := v.Validate(&candidate, nil, nil, nil)
	require.NotNil(t, rej)
	assert.Equal(t, models.ReasonMissingFuelForRefueling, rej.Reason)
}

func TestValidateRejectsVehicleOverlap(t *testing.T) {
	v := NewValidator(DefaultConfig())
	existing := tripAt("v1", day1.Add(8*time.Hour), day1.Add(18*time.Hour), 100, 200)
	candidate := tripAt("v1", day1.Add(12*time.Hour), day1.Add(20*time.Hour), 200, 260)

	_, rej := v.Validate(&candidate, []models.Trip{existing}, nil, nil)
	require.NotNil(t, rej)
	assert.Equal(t, models.ReasonTimeOverlap, rej.Reason)
}

func TestValidateRejectsDriverOverlap(t *testing.T) {
	v := NewValidator(DefaultConfig())
	// Same driver, different vehicle: still an overlap.
	existing := tripAt("v2", day1.Add(8*time.Hour), day1.Add(18*time.Hour), 100, 200)
	candidate := tripAt("v1", day1.Add(12*time.Hour), day1.Add(20*time.Hour), 200, 260)

	_, rej := v.Validate(&candidate, nil, []models.Trip{existing}, nil)
	require.NotNil(t, rej)
	assert.Equal(t, models.ReasonTimeOverlap, rej.Reason)
}

func TestValidateTouchingBoundariesAreNotOverlap(t *testing.T) {
	v := NewValidator(DefaultConfig())
	existing := tripAt("v1", day1.Add(8*time.Hour), day1.Add(12*time.Hour), 100, 200)
	candidate := tripAt("v1", day1.Add(12*time.Hour), day1.Add(14*time.Hour), 200, 240)

	warnings, rej := v.Validate(&candidate, []models.Trip{existing}, nil, nil)
	assert.Nil(t, rej)
	assert.Empty(t, warnings)
}

func TestValidateRejectsNegativeOdometerGap(t *testing.T) {
	v := NewValidator(DefaultConfig())
	existing := tripAt("v1", day1.Add(8*time.Hour), day1.Add(10*time.Hour), 950, 1000)
	candidate := tripAt("v1", day1.Add(12*time.Hour), day1.Add(14*time.Hour), 990, 1050)

	_, rej := v.Validate(&candidate, []models.Trip{existing}, nil, nil)
	require.NotNil(t, rej)
	assert.Equal(t, models.ReasonNegativeOdometerGap, rej.Reason)
}

func TestValidateSmallGapHasNoWarning(t *testing.T) {
	v := NewValidator(DefaultConfig())
	existing := tripAt("v1", day1.Add(8*time.Hour), day1.Add(10*time.Hour), 950, 1000)
	candidate := tripAt("v1", day1.Add(12*time.Hour), day1.Add(14*time.Hour), 1010, 1050)

	warnings, rej := v.Validate(&candidate, []models.Trip{existing}, nil, nil)
	require.Nil(t, rej)
	assert.Empty(t, warnings)
}

func TestValidateLargeGapWarns(t *testing.T) {
	v := NewValidator(DefaultConfig())
	existing := tripAt("v1", day1.Add(8*time.Hour), day1.Add(10*time.Hour), 950, 1000)
	candidate := tripAt("v1", day1.Add(12*time.Hour), day1.Add(14*time.Hour), 1080, 1150)

	warnings, rej := v.Validate(&candidate, []models.Trip{existing}, nil, nil)
	require.Nil(t, rej)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarnLargeOdometerGap, warnings[0].Code)
}

func TestValidateHighDailyDistanceWarns(t *testing.T) {
	v := NewValidator(DefaultConfig())
	profile := &models.CapacityProfile{MaxDailyKm: 500}
	candidate := tripAt("v1", day1, day1.Add(6*time.Hour), 0, 700)

	warnings, rej := v.Validate(&candidate, nil, nil, profile)
	require.Nil(t, rej)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarnHighDailyDistance, warnings[0].Code)
}

func TestValidateUpdateSkipsSelf(t *testing.T) {
	v := NewValidator(DefaultConfig())
	stored := tripAt("v1", day1.Add(8*time.Hour), day1.Add(12*time.Hour), 100, 200)
	candidate := stored.Clone()
	candidate.EndKm = 220

	warnings, rej := v.Validate(&candidate, []models.Trip{stored}, []models.Trip{stored}, nil)
	assert.Nil(t, rej)
	assert.Empty(t, warnings)
}
