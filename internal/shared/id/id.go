// Package id provides centralized ID generation for the embedding engine.
//
// All identifiers are prefixed ULIDs: lexicographically sortable, unique
// across the process, and readable in logs (inst_*, boot_*, win_*, ctx_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InstanceID identifies one embedding instance (lifecycle state machine).
type InstanceID string

// BootstrapID identifies one bootstrap handshake and keys the global
// props/window stores for the reference-passing path.
type BootstrapID string

// WindowID identifies a proxy window.
type WindowID string

// ContextID identifies a connected remote browsing context on the transport.
type ContextID string

const (
	InstancePrefix  = "inst"
	BootstrapPrefix = "boot"
	WindowPrefix    = "win"
	ContextPrefix   = "ctx"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewInstanceID generates a new instance ID
func NewInstanceID() InstanceID {
	return InstanceID(Default().GenerateWithPrefix(InstancePrefix))
}

// NewBootstrapID generates a new bootstrap ID
func NewBootstrapID() BootstrapID {
	return BootstrapID(Default().GenerateWithPrefix(BootstrapPrefix))
}

// NewWindowID generates a new window ID
func NewWindowID() WindowID {
	return WindowID(Default().GenerateWithPrefix(WindowPrefix))
}

// NewContextID generates a new context ID
func NewContextID() ContextID {
	return ContextID(Default().GenerateWithPrefix(ContextPrefix))
}

func (id InstanceID) String() string  { return string(id) }
func (id BootstrapID) String() string { return string(id) }
func (id WindowID) String() string    { return string(id) }
func (id ContextID) String() string   { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}
