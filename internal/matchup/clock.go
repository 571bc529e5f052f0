package matchup

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs. Used for registry row ids.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// ULIDGenerator produces lexicographically time-ordered ULIDs. Used for clip
// store keys so that a key listing sorts by creation.
type ULIDGenerator struct {
	mu      sync.Mutex
	clock   Clock
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator creates a generator drawing timestamps from clock.
func NewULIDGenerator(clock Clock) *ULIDGenerator {
	return &ULIDGenerator{
		clock:   clock,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *ULIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy).String()
}

// clipKeyTime returns the creation time carried by a ULID clip key. ok is
// false for keys whose id is not a ULID.
func clipKeyTime(key string) (time.Time, bool) {
	i := strings.LastIndexByte(key, '-')
	id, err := ulid.ParseStrict(key[i+1:])
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(id.Time()), true
}

// Clip key prefixes. Keys are "<prefix>-<id>".
const (
	SwingKeyPrefix   = "swing"
	PitchKeyPrefix   = "pitch"
	MatchupKeyPrefix = "matchup"
)

func clipKey(prefix string, ids IDGenerator) string {
	return prefix + "-" + ids.New()
}
