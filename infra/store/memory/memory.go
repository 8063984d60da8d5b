// Package memory provides in-memory store implementations. They back unit
// tests and the standalone demo mode, and double as the reference semantics
// for the postgres stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

// BinStore keeps bins keyed by id.
type BinStore struct {
	mu   sync.RWMutex
	bins map[string]model.Bin
}

// NewBinStore creates a BinStore seeded with the given bins.
func NewBinStore(bins ...model.Bin) *BinStore {
	s := &BinStore{bins: make(map[string]model.Bin, len(bins))}
	for _, b := range bins {
		s.bins[b.ID] = b
	}
	return s
}

func (s *BinStore) ActiveBins(_ context.Context) ([]model.Bin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Bin, 0, len(s.bins))
	for _, b := range s.bins {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces a bin.
func (s *BinStore) Put(b model.Bin) {
	s.mu.Lock()
	s.bins[b.ID] = b
	s.mu.Unlock()
}

// ReadingStore keeps the full reading history per bin, most recent last.
type ReadingStore struct {
	mu       sync.RWMutex
	readings map[string][]model.BinReading
}

// NewReadingStore creates an empty ReadingStore.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{readings: make(map[string][]model.BinReading)}
}

func (s *ReadingStore) LatestReading(_ context.Context, binID string) (model.BinReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.readings[binID]
	if len(hist) == 0 {
		return model.BinReading{}, store.ErrNotFound
	}
	latest := hist[0]
	for _, r := range hist[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return latest, nil
}

func (s *ReadingStore) Append(_ context.Context, r model.BinReading) error {
	s.mu.Lock()
	s.readings[r.BinID] = append(s.readings[r.BinID], r)
	s.mu.Unlock()
	return nil
}

// CollectionPointStore keeps collection points keyed by id.
type CollectionPointStore struct {
	mu     sync.RWMutex
	points map[string]model.CollectionPoint
}

// NewCollectionPointStore creates a store seeded with the given points.
func NewCollectionPointStore(points ...model.CollectionPoint) *CollectionPointStore {
	s := &CollectionPointStore{points: make(map[string]model.CollectionPoint, len(points))}
	for _, p := range points {
		s.points[p.ID] = p
	}
	return s
}

// Put inserts or replaces a collection point. Seed helper for tests.
func (s *CollectionPointStore) Put(p model.CollectionPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[p.ID] = p
}

func (s *CollectionPointStore) All(_ context.Context) ([]model.CollectionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CollectionPoint, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *CollectionPointStore) ByIDs(_ context.Context, ids []string) ([]model.CollectionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CollectionPoint, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.points[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DepotStore holds the fleet depots.
type DepotStore struct {
	mu     sync.RWMutex
	depots []model.Depot
}

// NewDepotStore creates a store seeded with the given depots.
func NewDepotStore(depots ...model.Depot) *DepotStore {
	return &DepotStore{depots: depots}
}

func (s *DepotStore) MainDepot(_ context.Context) (model.Depot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.depots {
		if d.Main {
			return d, nil
		}
	}
	return model.Depot{}, store.ErrNotFound
}

// VehicleStore keeps vehicles keyed by id. Claim is a compare-and-set on the
// busy flag under the store lock.
type VehicleStore struct {
	mu       sync.Mutex
	vehicles map[string]model.Vehicle
}

// NewVehicleStore creates a store seeded with the given vehicles.
func NewVehicleStore(vehicles ...model.Vehicle) *VehicleStore {
	s := &VehicleStore{vehicles: make(map[string]model.Vehicle, len(vehicles))}
	for _, v := range vehicles {
		s.vehicles[v.ID] = v
	}
	return s
}

func (s *VehicleStore) All(_ context.Context) ([]model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *VehicleStore) ByID(_ context.Context, id string) (model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return model.Vehicle{}, store.ErrNotFound
	}
	return v, nil
}

func (s *VehicleStore) Eligible(_ context.Context) ([]model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if v.Eligible() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *VehicleStore) Claim(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if v.Busy {
		return false, nil
	}
	v.Busy = true
	s.vehicles[id] = v
	return true, nil
}

func (s *VehicleStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return store.ErrNotFound
	}
	v.Busy = false
	s.vehicles[id] = v
	return nil
}

// SetStatus updates the vehicle status outside the planning path.
func (s *VehicleStore) SetStatus(id string, status model.VehicleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return store.ErrNotFound
	}
	v.Status = status
	s.vehicles[id] = v
	return nil
}

// EmployeeStore keeps employees keyed by id.
type EmployeeStore struct {
	mu        sync.RWMutex
	employees map[string]model.Employee
}

// NewEmployeeStore creates a store seeded with the given employees.
func NewEmployeeStore(employees ...model.Employee) *EmployeeStore {
	s := &EmployeeStore{employees: make(map[string]model.Employee, len(employees))}
	for _, e := range employees {
		s.employees[e.ID] = e
	}
	return s
}

func (s *EmployeeStore) All(_ context.Context) ([]model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *EmployeeStore) SetStatus(_ context.Context, id string, status model.EmployeeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Status = status
	s.employees[id] = e
	return nil
}

// TourneeStore keeps tournees keyed by id.
type TourneeStore struct {
	mu       sync.RWMutex
	tournees map[string]model.Tournee
}

// NewTourneeStore creates a store seeded with the given tournees.
func NewTourneeStore(tournees ...model.Tournee) *TourneeStore {
	s := &TourneeStore{tournees: make(map[string]model.Tournee, len(tournees))}
	for _, t := range tournees {
		s.tournees[t.ID] = t
	}
	return s
}

func (s *TourneeStore) ByID(_ context.Context, id string) (model.Tournee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournees[id]
	if !ok {
		return model.Tournee{}, store.ErrNotFound
	}
	return t, nil
}

func (s *TourneeStore) ByStatus(_ context.Context, status model.TourneeStatus) ([]model.Tournee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(t model.Tournee) bool { return t.Status == status }), nil
}

func (s *TourneeStore) ByCategoryAndStatus(_ context.Context, cat model.TrashCategory, status model.TourneeStatus) ([]model.Tournee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(t model.Tournee) bool {
		return t.Category == cat && t.Status == status
	}), nil
}

func (s *TourneeStore) CompletedBetween(_ context.Context, from, to time.Time) ([]model.Tournee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(t model.Tournee) bool {
		return t.Status == model.TourneeCompleted && t.FinishedAt != nil &&
			!t.FinishedAt.Before(from) && t.FinishedAt.Before(to)
	}), nil
}

func (s *TourneeStore) SaveAll(_ context.Context, tournees []model.Tournee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tournees {
		s.tournees[t.ID] = t
	}
	return nil
}

func (s *TourneeStore) Update(_ context.Context, t model.Tournee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tournees[t.ID]; !ok {
		return store.ErrNotFound
	}
	s.tournees[t.ID] = t
	return nil
}

func (s *TourneeStore) filterLocked(keep func(model.Tournee) bool) []model.Tournee {
	out := make([]model.Tournee, 0)
	for _, t := range s.tournees {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AssignmentStore keeps crew assignments.
type AssignmentStore struct {
	mu          sync.RWMutex
	assignments map[string]model.TourneeAssignment
}

// NewAssignmentStore creates an empty AssignmentStore.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{assignments: make(map[string]model.TourneeAssignment)}
}

func (s *AssignmentStore) All(_ context.Context) ([]model.TourneeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(model.TourneeAssignment) bool { return true }), nil
}

func (s *AssignmentStore) ByTournee(_ context.Context, tourneeID string) ([]model.TourneeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(a model.TourneeAssignment) bool { return a.TourneeID == tourneeID }), nil
}

func (s *AssignmentStore) ByEmployee(_ context.Context, employeeID string) ([]model.TourneeAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(a model.TourneeAssignment) bool { return a.EmployeeID == employeeID }), nil
}

func (s *AssignmentStore) CreateBatch(_ context.Context, batch []model.TourneeAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range batch {
		s.assignments[a.ID] = a
	}
	return nil
}

func (s *AssignmentStore) filterLocked(keep func(model.TourneeAssignment) bool) []model.TourneeAssignment {
	out := make([]model.TourneeAssignment, 0)
	for _, a := range s.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConfigStore holds the automation singleton.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg *model.AutomationConfig
}

// NewConfigStore creates an empty ConfigStore.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

func (s *ConfigStore) Get(_ context.Context) (model.AutomationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return model.AutomationConfig{}, store.ErrNotFound
	}
	return *s.cfg, nil
}

func (s *ConfigStore) Put(_ context.Context, cfg model.AutomationConfig) error {
	s.mu.Lock()
	c := cfg
	s.cfg = &c
	s.mu.Unlock()
	return nil
}
