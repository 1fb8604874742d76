package openfloor

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces namespaced identifiers such as "de:<uuid>" for dialog
// events and "conv:<uuid>" for conversations.
type IDGenerator func(prefix string) string

var (
	idMu  sync.RWMutex
	genID IDGenerator = func(prefix string) string {
		return prefix + ":" + uuid.NewString()
	}
)

// SetIDGenerator replaces the generator used for auto-assigned identifiers.
// Tests use this to make ids deterministic. Passing nil restores the
// uuid-backed default.
func SetIDGenerator(g IDGenerator) {
	idMu.Lock()
	defer idMu.Unlock()
	if g == nil {
		g = func(prefix string) string { return prefix + ":" + uuid.NewString() }
	}
	genID = g
}

func newID(prefix string) string {
	idMu.RLock()
	defer idMu.RUnlock()
	return genID(prefix)
}
