package persistence

import (
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrTransient wraps failures that are worth retrying: the database was
// momentarily unavailable or a lock could not be taken.
var ErrTransient = errors.New("transient persistence failure")

// IsTransient reports whether the error is a retryable persistence
// failure. Connection loss, serialization failures, and deadlocks
// qualify; constraint violations and programming errors do not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08": // connection exceptions
			return true
		case "40": // serialization failure, deadlock detected
			return true
		case "53": // insufficient resources
			return true
		case "55": // object not in prerequisite state (lock not available)
			return pqErr.Code == "55P03"
		}
	}
	return false
}
