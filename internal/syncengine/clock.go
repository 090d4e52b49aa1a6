package syncengine

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so engine operations are deterministic
// in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique 128-bit id generation so tests are
// deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs, used as opaque 128-bit ids for
// projects and snapshots.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
