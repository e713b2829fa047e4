// internal/store/memory.go
//
// Persistence for relay bootstrap records and the transport port counter,
// plus the in-memory implementation of Store.
//
// Characteristics (memory):
//   - Records keyed by game id in a map; port counter starts at basePort.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts. Use the SQLite store when ports
//     must stay unused across restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

// Record describes a game that has been allocated a relay endpoint.
type Record struct {
	GameID          string    `json:"gameId"`
	ContractAddress string    `json:"contractAddress"`
	Port            int       `json:"port"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store defines the persistence interface for relay records.
type Store interface {
	// NextPort reserves and returns the next never-handed-out port.
	NextPort(ctx context.Context) (int, error)

	// Save persists or updates a record.
	Save(ctx context.Context, r Record) error

	// Get retrieves a record by game id, ErrNotFound if missing.
	Get(ctx context.Context, gameID string) (*Record, error)
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex      // guards all fields
	next    int               // next port to hand out
	records map[string]Record // keyed by GameID
}

// NewMemoryStore constructs a new in-memory Store whose first port is basePort.
func NewMemoryStore(basePort int) Store {
	return &memory{next: basePort, records: make(map[string]Record)}
}

func (m *memory) NextPort(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.next
	m.next++
	return p, nil
}

func (m *memory) Save(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.GameID] = r
	return nil
}

func (m *memory) Get(ctx context.Context, gameID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[gameID]; ok {
		return &r, nil
	}
	return nil, ErrNotFound
}
