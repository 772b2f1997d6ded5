package testfixtures

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// fixtureNamespace seeds the deterministic UUIDs handed out by UUID.
var fixtureNamespace = uuid.MustParse("6f1c1f0e-5d8a-4c1b-9a53-2b0c3e9f4a11")

// IDGenerator produces deterministic identifiers for tests.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator yields identifiers like "<prefix>-1". An empty prefix uses "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.next())
}

// UUID returns the next identifier as a name-based UUID, so tests that need
// UUID-shaped ids still get a repeatable sequence.
func (g *IDGenerator) UUID() string {
	name := fmt.Sprintf("%s-%d", g.prefix, g.next())
	return uuid.NewSHA1(fixtureNamespace, []byte(name)).String()
}

// NextFunc exposes Next for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// UUIDFunc exposes UUID for dependency injection.
func (g *IDGenerator) UUIDFunc() func() string {
	if g == nil {
		return uuid.NewString
	}
	return g.UUID
}

// Reset restarts the sequence.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counter = 0
	g.mu.Unlock()
}

func (g *IDGenerator) next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.counter
}
