package pix

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time. Injected so scan and transfer
// timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator mints catalog record IDs.
type IDGenerator interface {
	New() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
