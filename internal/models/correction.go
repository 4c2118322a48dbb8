package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CorrectionRecord is an audit entry written whenever a cascade touches a trip
// other than the one originally edited. All records produced by one cascade
// share a correlation id. A nil value means the field was null at that point,
// which for mileage is distinct from 0.0.
type CorrectionRecord struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TripID        string             `bson:"trip_id" json:"trip_id"`
	Field         string             `bson:"field" json:"field"`
	OldValue      *float64           `bson:"old_value" json:"old_value"`
	NewValue      *float64           `bson:"new_value" json:"new_value"`
	Cascade       bool               `bson:"cascade" json:"cascade"`
	CorrelationID string             `bson:"correlation_id" json:"correlation_id"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// AuditEvent records a validation warning that accompanied a successful write.
type AuditEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TripID    string             `bson:"trip_id" json:"trip_id"`
	Code      string             `bson:"code" json:"code"`
	Detail    string             `bson:"detail" json:"detail"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
