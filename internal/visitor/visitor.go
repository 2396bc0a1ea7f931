// Package visitor resolves the pseudo-anonymous identity of the local client.
package visitor

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StorageKey is the key the identifier is persisted under.
const StorageKey = "visitor_id"

const suffixLength = 7

// Context carries the resolved visitor identity into the session controller.
type Context struct {
	ID string
	// Persisted is false when storage was unavailable and the id lives only
	// for this process.
	Persisted bool
}

// Resolve returns the stored visitor id, generating and persisting one on
// first use. Storage failures degrade to a fresh id that is not persisted.
func Resolve(storage Storage) Context {
	if storage == nil {
		return Context{ID: NewID(time.Now())}
	}

	stored, ok, err := storage.Get(StorageKey)
	if err != nil {
		log.Printf("[visitor] read failed, using ephemeral id: %v", err)
		return Context{ID: NewID(time.Now())}
	}
	if ok && stored != "" {
		return Context{ID: stored, Persisted: true}
	}

	id := NewID(time.Now())
	if err := storage.Set(StorageKey, id); err != nil {
		log.Printf("[visitor] write failed, id will not survive restart: %v", err)
		return Context{ID: id}
	}
	return Context{ID: id, Persisted: true}
}

// NewID builds an identifier of the form visitor_<unix millis>_<suffix>.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
	return fmt.Sprintf("visitor_%d_%s", now.UnixMilli(), suffix)
}
