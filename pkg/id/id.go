package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string stamped with the current time. Used for run ids
// and anything created on the live path.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	return mustNew(time.Now().UTC(), mono)
}

// Sequence hands out ULIDs from a seeded entropy source. Two sequences built
// from the same seed and fed the same timestamps return the same ids, which
// keeps simulation output byte-identical between runs.
//
// A Sequence is not safe for concurrent use.
type Sequence struct {
	entropy io.Reader
}

// NewSequence returns a deterministic sequence for seed.
func NewSequence(seed int64) *Sequence {
	return &Sequence{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// Next returns the next id stamped with t, normally the time of the price
// observation being processed.
func (s *Sequence) Next(t time.Time) string {
	return mustNew(t, s.entropy)
}

func mustNew(t time.Time, entropy io.Reader) string {
	if t.Before(time.Unix(0, 0)) {
		t = time.Unix(0, 0)
	}
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// only on entropy exhaustion within one millisecond
		panic(err)
	}
	return id.String()
}
