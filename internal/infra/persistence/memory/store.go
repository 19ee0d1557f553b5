// Package memory provides an in-memory implementation of the garden
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gardenkeep/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type row[T any] struct {
	seq   uint64
	value T
}

type memoryState struct {
	plants    map[string]row[domain.Plant]
	favorites map[string]row[domain.Favorite]
	chores    map[string]row[domain.GardenChore]
	schedules map[string]row[domain.PlantSchedule]
}

func newMemoryState() memoryState {
	return memoryState{
		plants:    make(map[string]row[domain.Plant]),
		favorites: make(map[string]row[domain.Favorite]),
		chores:    make(map[string]row[domain.GardenChore]),
		schedules: make(map[string]row[domain.PlantSchedule]),
	}
}

func cloneMap[T any](in map[string]row[T]) map[string]row[T] {
	out := make(map[string]row[T], len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s memoryState) clone() memoryState {
	return memoryState{
		plants:    cloneMap(s.plants),
		favorites: cloneMap(s.favorites),
		chores:    cloneMap(s.chores),
		schedules: cloneMap(s.schedules),
	}
}

// Store is a process-local PersistentStore. Rows are values, so the shallow
// map clone taken per transaction isolates uncommitted writes.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	seq   uint64
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{state: newMemoryState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTransaction applies fn against a copy of the state and commits it
// only when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, owner domain.UserID, fn func(domain.Transaction) error) error {
	if owner.IsNull() {
		return domain.ErrAccessDenied
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction{store: s, owner: owner, state: s.state.clone(), seq: s.seq}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	s.seq = tx.seq
	return nil
}

// View runs fn against a read-only view of the owner's rows.
func (s *Store) View(ctx context.Context, owner domain.UserID, fn func(domain.TransactionView) error) error {
	if owner.IsNull() {
		return domain.ErrAccessDenied
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&transaction{store: s, owner: owner, state: s.state, readOnly: true})
}

// Tables reports every garden table as present.
func (s *Store) Tables(_ context.Context, names ...string) (map[string]bool, error) {
	known := make(map[string]bool, len(domain.TableNames))
	for _, n := range domain.TableNames {
		known[n] = true
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = known[n]
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type transaction struct {
	store    *Store
	owner    domain.UserID
	state    memoryState
	seq      uint64
	readOnly bool
}

func (tx *transaction) next() uint64 {
	tx.seq++
	return tx.seq
}

func (tx *transaction) writable() error {
	if tx.readOnly {
		return fmt.Errorf("memory store: write in read-only view")
	}
	return nil
}

func (tx *transaction) stamp() time.Time { return tx.store.now().UTC() }

func owned[T any](rows map[string]row[T], owner domain.UserID, ownerOf func(T) domain.UserID) []row[T] {
	out := make([]row[T], 0, len(rows))
	for _, r := range rows {
		if ownerOf(r.value) == owner {
			out = append(out, r)
		}
	}
	return out
}

func values[T any](rows []row[T]) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.value
	}
	return out
}

func (tx *transaction) ListPlants() ([]domain.Plant, error) {
	rows := owned(tx.state.plants, tx.owner, func(p domain.Plant) domain.UserID { return p.UserID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	return values(rows), nil
}

func (tx *transaction) CreatePlant(p domain.Plant) (domain.Plant, error) {
	if err := tx.writable(); err != nil {
		return domain.Plant{}, err
	}
	now := tx.stamp()
	p.ID = uuid.NewString()
	p.UserID = tx.owner
	p.CreatedAt, p.UpdatedAt = now, now
	tx.state.plants[p.ID] = row[domain.Plant]{seq: tx.next(), value: p}
	return p, nil
}

func (tx *transaction) DeletePlant(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	r, ok := tx.state.plants[id]
	if !ok || r.value.UserID != tx.owner {
		return domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
	}
	delete(tx.state.plants, id)
	// Mirror ON DELETE CASCADE / SET NULL from the SQL schema.
	for k, s := range tx.state.schedules {
		if s.value.PlantID == id {
			delete(tx.state.schedules, k)
		}
	}
	for k, c := range tx.state.chores {
		if c.value.PlantID != nil && *c.value.PlantID == id {
			c.value.PlantID = nil
			tx.state.chores[k] = c
		}
	}
	return nil
}

func (tx *transaction) ListFavorites() ([]domain.Favorite, error) {
	rows := owned(tx.state.favorites, tx.owner, func(f domain.Favorite) domain.UserID { return f.UserID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	return values(rows), nil
}

func (tx *transaction) CreateFavorite(f domain.Favorite) (domain.Favorite, error) {
	if err := tx.writable(); err != nil {
		return domain.Favorite{}, err
	}
	for _, existing := range tx.state.favorites {
		if existing.value.UserID == tx.owner && existing.value.SpeciesID == f.SpeciesID {
			return domain.Favorite{}, domain.ErrAlreadyFavorited
		}
	}
	f.ID = uuid.NewString()
	f.UserID = tx.owner
	f.CreatedAt = tx.stamp()
	tx.state.favorites[f.ID] = row[domain.Favorite]{seq: tx.next(), value: f}
	return f, nil
}

func (tx *transaction) DeleteFavorite(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	r, ok := tx.state.favorites[id]
	if !ok || r.value.UserID != tx.owner {
		return domain.NotFoundError{Entity: domain.EntityFavorite, ID: id}
	}
	delete(tx.state.favorites, id)
	return nil
}

func (tx *transaction) ListChores() ([]domain.GardenChore, error) {
	rows := owned(tx.state.chores, tx.owner, func(c domain.GardenChore) domain.UserID { return c.UserID })
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].value.ScheduledDate.Compare(rows[j].value.ScheduledDate); c != 0 {
			return c < 0
		}
		return rows[i].seq < rows[j].seq
	})
	return values(rows), nil
}

func (tx *transaction) GetChore(id string) (domain.GardenChore, error) {
	r, ok := tx.state.chores[id]
	if !ok || r.value.UserID != tx.owner {
		return domain.GardenChore{}, domain.NotFoundError{Entity: domain.EntityChore, ID: id}
	}
	return r.value, nil
}

func (tx *transaction) CreateChore(c domain.GardenChore) (domain.GardenChore, error) {
	if err := tx.writable(); err != nil {
		return domain.GardenChore{}, err
	}
	if c.PlantID != nil {
		if p, ok := tx.state.plants[*c.PlantID]; !ok || p.value.UserID != tx.owner {
			return domain.GardenChore{}, domain.NotFoundError{Entity: domain.EntityPlant, ID: *c.PlantID}
		}
	}
	now := tx.stamp()
	c.ID = uuid.NewString()
	c.UserID = tx.owner
	c.CreatedAt, c.UpdatedAt = now, now
	if !c.Completed {
		c.CompletedAt = nil
	}
	tx.state.chores[c.ID] = row[domain.GardenChore]{seq: tx.next(), value: c}
	return c, nil
}

func (tx *transaction) SetChoreCompletion(id string, completed bool, completedAt *time.Time) (domain.GardenChore, error) {
	if err := tx.writable(); err != nil {
		return domain.GardenChore{}, err
	}
	if completed != (completedAt != nil) {
		return domain.GardenChore{}, fmt.Errorf("memory store: completed_at must be set exactly when completed")
	}
	r, ok := tx.state.chores[id]
	if !ok || r.value.UserID != tx.owner {
		return domain.GardenChore{}, domain.NotFoundError{Entity: domain.EntityChore, ID: id}
	}
	r.value.Completed = completed
	r.value.CompletedAt = completedAt
	r.value.UpdatedAt = tx.stamp()
	tx.state.chores[id] = r
	return r.value, nil
}

func (tx *transaction) DeleteChore(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	r, ok := tx.state.chores[id]
	if !ok || r.value.UserID != tx.owner {
		return domain.NotFoundError{Entity: domain.EntityChore, ID: id}
	}
	delete(tx.state.chores, id)
	return nil
}

func (tx *transaction) ListSchedules() ([]domain.PlantSchedule, error) {
	rows := owned(tx.state.schedules, tx.owner, func(s domain.PlantSchedule) domain.UserID { return s.UserID })
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].value.NextDueDate.Compare(rows[j].value.NextDueDate); c != 0 {
			return c < 0
		}
		return rows[i].seq < rows[j].seq
	})
	return values(rows), nil
}

func (tx *transaction) GetSchedule(id string) (domain.PlantSchedule, error) {
	r, ok := tx.state.schedules[id]
	if !ok || r.value.UserID != tx.owner {
		return domain.PlantSchedule{}, domain.NotFoundError{Entity: domain.EntitySchedule, ID: id}
	}
	return r.value, nil
}

func (tx *transaction) CreateSchedule(s domain.PlantSchedule) (domain.PlantSchedule, error) {
	if err := tx.writable(); err != nil {
		return domain.PlantSchedule{}, err
	}
	if p, ok := tx.state.plants[s.PlantID]; !ok || p.value.UserID != tx.owner {
		return domain.PlantSchedule{}, domain.NotFoundError{Entity: domain.EntityPlant, ID: s.PlantID}
	}
	now := tx.stamp()
	s.ID = uuid.NewString()
	s.UserID = tx.owner
	s.CreatedAt, s.UpdatedAt = now, now
	tx.state.schedules[s.ID] = row[domain.PlantSchedule]{seq: tx.next(), value: s}
	return s, nil
}

func (tx *transaction) UpdateSchedule(s domain.PlantSchedule) (domain.PlantSchedule, error) {
	if err := tx.writable(); err != nil {
		return domain.PlantSchedule{}, err
	}
	r, ok := tx.state.schedules[s.ID]
	if !ok || r.value.UserID != tx.owner {
		return domain.PlantSchedule{}, domain.NotFoundError{Entity: domain.EntitySchedule, ID: s.ID}
	}
	s.UserID = tx.owner
	s.PlantID = r.value.PlantID
	s.CreatedAt = r.value.CreatedAt
	s.UpdatedAt = tx.stamp()
	r.value = s
	tx.state.schedules[s.ID] = r
	return s, nil
}

func (tx *transaction) DeleteSchedule(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	r, ok := tx.state.schedules[id]
	if !ok || r.value.UserID != tx.owner {
		return domain.NotFoundError{Entity: domain.EntitySchedule, ID: id}
	}
	delete(tx.state.schedules, id)
	return nil
}
