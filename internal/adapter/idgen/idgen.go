// Package idgen generates row identifiers and account numbers.
package idgen

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates ULID-based IDs.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}

// AccountNumberGenerator issues numbers of the form ACC<millis><seq>.
// Numbers are unique within a process. Collisions across processes surface
// as duplicate account numbers, which callers retry with a fresh number.
type AccountNumberGenerator struct {
	seq atomic.Uint32
	now func() time.Time
}

// NewAccountNumberGenerator creates a new AccountNumberGenerator.
func NewAccountNumberGenerator() *AccountNumberGenerator {
	return &AccountNumberGenerator{now: time.Now}
}

// Generate returns the next account number.
func (g *AccountNumberGenerator) Generate() string {
	n := g.seq.Add(1) % 1000
	return fmt.Sprintf("ACC%d%03d", g.now().UnixMilli(), n)
}
