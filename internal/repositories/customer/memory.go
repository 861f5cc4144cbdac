package customer

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/models"
)

type memoryTxKey struct{}

// Memory is an in-process customer store. Reads return copies, and WithinTx
// restores the previous contents when fn fails.
type Memory struct {
	mu        sync.RWMutex
	txMu      sync.Mutex
	customers map[int64]models.Customer
	nextID    int64
	now       func() time.Time
}

// NewMemory creates a store seeded with the given customers.
// Customers without an id are assigned one.
func NewMemory(seed ...models.Customer) *Memory {
	m := &Memory{
		customers: make(map[int64]models.Customer, len(seed)),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, c := range seed {
		c := c.Clone()
		m.insert(&c)
	}
	return m
}

func (m *Memory) insert(c *models.Customer) {
	if c.ID <= 0 {
		c.ID = m.nextID + 1
	}
	if c.ID > m.nextID {
		m.nextID = c.ID
	}
	m.customers[c.ID] = c.Clone()
}

// WithinTx runs fn while holding the store's transaction lock. Nested calls join the outer one.
func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot, nextID := m.snapshot()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.customers = snapshot
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite serializes a write made outside WithinTx with any running transaction,
// so a rollback cannot discard it
func (m *Memory) lockWrite(ctx context.Context) func() {
	if ctx.Value(memoryTxKey{}) != nil {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

func (m *Memory) snapshot() (map[int64]models.Customer, int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]models.Customer, len(m.customers))
	for id, c := range m.customers {
		out[id] = c.Clone()
	}
	return out, m.nextID
}

func (m *Memory) Create(ctx context.Context, c *models.Customer) error {
	defer m.lockWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ID > 0 {
		if _, ok := m.customers[c.ID]; ok {
			return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("customer %d already exists", c.ID))
		}
	}
	m.insert(c)
	return nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("customer %d not found", id))
	}
	out := c.Clone()
	return &out, nil
}

func (m *Memory) ListActive(_ context.Context) ([]models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		if !c.Archived {
			out = append(out, c.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (m *Memory) GetByIDs(_ context.Context, ids []int64) ([]models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[int64]bool, len(ids))
	out := make([]models.Customer, 0, len(ids))
	for _, id := range ids {
		c, ok := m.customers[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c.Clone())
	}
	sortByID(out)
	return out, nil
}

func (m *Memory) Archive(ctx context.Context, ids []int64) error {
	m.setArchived(ctx, ids, true)
	return nil
}

func (m *Memory) Restore(ctx context.Context, ids []int64) error {
	m.setArchived(ctx, ids, false)
	return nil
}

func (m *Memory) setArchived(ctx context.Context, ids []int64, archived bool) {
	defer m.lockWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, id := range ids {
		c, ok := m.customers[id]
		if !ok {
			continue
		}
		c.Archived = archived
		c.UpdatedAt = now
		m.customers[id] = c
	}
}

func (m *Memory) Delete(ctx context.Context, ids []int64) error {
	defer m.lockWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.customers, id)
	}
	return nil
}

func (m *Memory) Update(ctx context.Context, c *models.Customer) error {
	defer m.lockWrite(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[c.ID]; !ok {
		return nil
	}
	c.UpdatedAt = m.now()
	m.customers[c.ID] = c.Clone()
	return nil
}

// Len returns the number of stored customers, archived ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.customers)
}

func sortByID(customers []models.Customer) {
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
}
