// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/ta-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data memoryData
}

type applicationKey struct {
	PostingID     engine.PostingID
	ApplicationID engine.ApplicationID
}

type memoryData struct {
	postings     map[engine.PostingID]engine.Posting
	offerings    map[engine.OfferingID]engine.Offering
	descriptions map[engine.DescriptionID]engine.DutyDescription
	contracts    map[engine.ContractID]engine.Contract
	applications map[applicationKey]engine.ContractID
}

func newMemoryData() memoryData {
	return memoryData{
		postings:     make(map[engine.PostingID]engine.Posting),
		offerings:    make(map[engine.OfferingID]engine.Offering),
		descriptions: make(map[engine.DescriptionID]engine.DutyDescription),
		contracts:    make(map[engine.ContractID]engine.Contract),
		applications: make(map[applicationKey]engine.ContractID),
	}
}

func NewMemory() *Memory {
	return &Memory{data: newMemoryData()}
}

func (m *Memory) GetPosting(_ context.Context, id engine.PostingID) (engine.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getPosting(id)
}

func (m *Memory) PostingFor(_ context.Context, unitLabel string, semester engine.SemesterCode) (engine.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.postingFor(unitLabel, semester)
}

func (m *Memory) SavePosting(_ context.Context, p engine.Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.savePosting(p)
	return nil
}

func (m *Memory) GetOffering(_ context.Context, id engine.OfferingID) (engine.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getOffering(id)
}

func (m *Memory) SaveOffering(_ context.Context, o engine.Offering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.offerings[o.ID] = o
	return nil
}

func (m *Memory) ListOfferings(_ context.Context, unitLabel string, semester engine.SemesterCode) ([]engine.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listOfferings(unitLabel, semester), nil
}

func (m *Memory) GetDescription(_ context.Context, id engine.DescriptionID) (engine.DutyDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getDescription(id)
}

func (m *Memory) SaveDescription(_ context.Context, d engine.DutyDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.descriptions[d.ID] = d
	return nil
}

func (m *Memory) ListDescriptions(_ context.Context, unitLabel string) ([]engine.DutyDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listDescriptions(unitLabel), nil
}

func (m *Memory) GetContract(_ context.Context, id engine.ContractID) (engine.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getContract(id)
}

func (m *Memory) CreateContract(_ context.Context, c engine.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.createContract(c)
}

func (m *Memory) UpdateContract(_ context.Context, c engine.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateContract(c)
}

func (m *Memory) ListContracts(_ context.Context, posting engine.PostingID) ([]engine.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listContracts(posting), nil
}

func (m *Memory) NextExportSequence(_ context.Context, posting engine.PostingID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.nextExportSequence(posting)
}

// =============================================================================
// UNLOCKED OPERATIONS - callers hold the lock
// =============================================================================

func (d *memoryData) getPosting(id engine.PostingID) (engine.Posting, error) {
	p, ok := d.postings[id]
	if !ok {
		return engine.Posting{}, fmt.Errorf("posting %s: %w", id, engine.ErrNotFound)
	}
	return p, nil
}

// savePosting keeps the stored export counter; only NextExportSequence moves it.
func (d *memoryData) savePosting(p engine.Posting) {
	if existing, ok := d.postings[p.ID]; ok {
		p.ExportSequence = existing.ExportSequence
	}
	d.postings[p.ID] = p
}

func (d *memoryData) postingFor(unitLabel string, semester engine.SemesterCode) (engine.Posting, error) {
	for _, p := range d.postings {
		if p.UnitLabel == unitLabel && p.Semester == semester {
			return p, nil
		}
	}
	return engine.Posting{}, fmt.Errorf("posting for %s %s: %w", unitLabel, semester, engine.ErrNotFound)
}

func (d *memoryData) getOffering(id engine.OfferingID) (engine.Offering, error) {
	o, ok := d.offerings[id]
	if !ok {
		return engine.Offering{}, fmt.Errorf("offering %s: %w", id, engine.ErrNotFound)
	}
	return o, nil
}

func (d *memoryData) listOfferings(unitLabel string, semester engine.SemesterCode) []engine.Offering {
	var result []engine.Offering
	for _, o := range d.offerings {
		if o.UnitLabel == unitLabel && o.Semester == semester {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

func (d *memoryData) getDescription(id engine.DescriptionID) (engine.DutyDescription, error) {
	desc, ok := d.descriptions[id]
	if !ok {
		return engine.DutyDescription{}, fmt.Errorf("duty description %s: %w", id, engine.ErrNotFound)
	}
	return desc, nil
}

func (d *memoryData) listDescriptions(unitLabel string) []engine.DutyDescription {
	var result []engine.DutyDescription
	for _, desc := range d.descriptions {
		if desc.UnitLabel == unitLabel {
			result = append(result, desc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (d *memoryData) getContract(id engine.ContractID) (engine.Contract, error) {
	c, ok := d.contracts[id]
	if !ok {
		return engine.Contract{}, fmt.Errorf("contract %s: %w", id, engine.ErrNotFound)
	}
	return cloneContract(c), nil
}

func (d *memoryData) createContract(c engine.Contract) error {
	k := applicationKey{PostingID: c.PostingID, ApplicationID: c.ApplicationID}
	if _, exists := d.applications[k]; exists {
		return engine.ErrDuplicateContract
	}
	d.applications[k] = c.ID
	d.contracts[c.ID] = cloneContract(c)
	return nil
}

func (d *memoryData) updateContract(c engine.Contract) error {
	if _, ok := d.contracts[c.ID]; !ok {
		return fmt.Errorf("contract %s: %w", c.ID, engine.ErrNotFound)
	}
	d.contracts[c.ID] = cloneContract(c)
	return nil
}

func (d *memoryData) listContracts(posting engine.PostingID) []engine.Contract {
	var result []engine.Contract
	for _, c := range d.contracts {
		if c.PostingID == posting {
			result = append(result, cloneContract(c))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (d *memoryData) nextExportSequence(posting engine.PostingID) (int, error) {
	p, err := d.getPosting(posting)
	if err != nil {
		return 0, err
	}
	p.ExportSequence++
	d.postings[posting] = p
	return p.ExportSequence, nil
}

func cloneContract(c engine.Contract) engine.Contract {
	c.Assignments = append([]engine.CourseAssignment(nil), c.Assignments...)
	return c
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.data.snapshot()
	if err := fn(&txMemoryView{data: &tm.data}); err != nil {
		tm.data = snapshot
		return err
	}
	return nil
}

func (d *memoryData) snapshot() memoryData {
	s := newMemoryData()
	for k, v := range d.postings {
		s.postings[k] = v
	}
	for k, v := range d.offerings {
		s.offerings[k] = v
	}
	for k, v := range d.descriptions {
		s.descriptions[k] = v
	}
	for k, v := range d.contracts {
		s.contracts[k] = cloneContract(v)
	}
	for k, v := range d.applications {
		s.applications[k] = v
	}
	return s
}

// txMemoryView is the Store handed to WithTx callbacks. The lock is held by
// WithTx for the whole callback.
type txMemoryView struct {
	data *memoryData
}

func (tv *txMemoryView) GetPosting(_ context.Context, id engine.PostingID) (engine.Posting, error) {
	return tv.data.getPosting(id)
}

func (tv *txMemoryView) PostingFor(_ context.Context, unitLabel string, semester engine.SemesterCode) (engine.Posting, error) {
	return tv.data.postingFor(unitLabel, semester)
}

func (tv *txMemoryView) SavePosting(_ context.Context, p engine.Posting) error {
	tv.data.savePosting(p)
	return nil
}

func (tv *txMemoryView) GetOffering(_ context.Context, id engine.OfferingID) (engine.Offering, error) {
	return tv.data.getOffering(id)
}

func (tv *txMemoryView) SaveOffering(_ context.Context, o engine.Offering) error {
	tv.data.offerings[o.ID] = o
	return nil
}

func (tv *txMemoryView) ListOfferings(_ context.Context, unitLabel string, semester engine.SemesterCode) ([]engine.Offering, error) {
	return tv.data.listOfferings(unitLabel, semester), nil
}

func (tv *txMemoryView) GetDescription(_ context.Context, id engine.DescriptionID) (engine.DutyDescription, error) {
	return tv.data.getDescription(id)
}

func (tv *txMemoryView) SaveDescription(_ context.Context, d engine.DutyDescription) error {
	tv.data.descriptions[d.ID] = d
	return nil
}

func (tv *txMemoryView) ListDescriptions(_ context.Context, unitLabel string) ([]engine.DutyDescription, error) {
	return tv.data.listDescriptions(unitLabel), nil
}

func (tv *txMemoryView) GetContract(_ context.Context, id engine.ContractID) (engine.Contract, error) {
	return tv.data.getContract(id)
}

func (tv *txMemoryView) CreateContract(_ context.Context, c engine.Contract) error {
	return tv.data.createContract(c)
}

func (tv *txMemoryView) UpdateContract(_ context.Context, c engine.Contract) error {
	return tv.data.updateContract(c)
}

func (tv *txMemoryView) ListContracts(_ context.Context, posting engine.PostingID) ([]engine.Contract, error) {
	return tv.data.listContracts(posting), nil
}

func (tv *txMemoryView) NextExportSequence(_ context.Context, posting engine.PostingID) (int, error) {
	return tv.data.nextExportSequence(posting)
}
