package engine

import (
	"errors"
	"fmt"
)

// ErrVehicleRequired is returned for candidates without a vehicle reference.
var ErrVehicleRequired = errors.New("trip has no vehicle reference")

// Rejection is a fatal validation failure. A rejected write persists nothing;
// the reason code is one of the models.Reason* constants.
type Rejection struct {
	Reason string
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}
