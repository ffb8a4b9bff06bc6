package directory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/c360studio/contractnotify/vocabulary/contract"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout understood by LoadFixture.
type Fixture struct {
	StoredQuery []string    `yaml:"stored_query"`
	Documents   []*Document `yaml:"documents"`
}

// Memory is an in-memory Gateway. It backs dry runs against a fixture file and
// stands in for the graph gateway in tests.
type Memory struct {
	mu          sync.RWMutex
	docs        map[string]*Document
	storedQuery []string
	loadErrs    map[string]error
	loads       map[string]int
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]*Document),
		loadErrs: make(map[string]error),
		loads:    make(map[string]int),
	}
}

// LoadFixture reads a YAML fixture into a new Memory directory.
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	m := NewMemory()
	for _, doc := range fx.Documents {
		if doc == nil || doc.ID == "" {
			return nil, fmt.Errorf("fixture %s: document without id", path)
		}
		m.Put(doc)
	}
	m.SetStoredQuery(fx.StoredQuery...)
	return m, nil
}

// Put stores or replaces a document.
func (m *Memory) Put(doc *Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
}

// SetStoredQuery sets the ids RunStoredQuery returns.
func (m *Memory) SetStoredQuery(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storedQuery = append([]string(nil), ids...)
}

// FailLoad makes every LoadDocument call for id return err.
func (m *Memory) FailLoad(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErrs[id] = err
}

// Loads returns how many times id was requested.
func (m *Memory) Loads(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads[id]
}

// LoadDocument returns a copy of the stored document.
func (m *Memory) LoadDocument(ctx context.Context, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{ID: id, Err: err}
	}

	m.mu.Lock()
	m.loads[id]++
	failure := m.loadErrs[id]
	doc, ok := m.docs[id]
	m.mu.Unlock()

	if failure != nil {
		return nil, &LoadError{ID: id, Err: failure}
	}
	if !ok {
		return nil, &LoadError{ID: id, Err: ErrNotFound}
	}

	cp := &Document{ID: doc.ID, Triples: make([]Triple, len(doc.Triples))}
	copy(cp.Triples, doc.Triples)
	return cp, nil
}

// IsIndividualValid reports whether the entity is explicitly valid and not deleted.
func (m *Memory) IsIndividualValid(_ context.Context, doc *Document) (bool, error) {
	return isIndividualValid(doc), nil
}

// IsSubUnitOf walks the parent-unit chain of the department looking for rootID.
func (m *Memory) IsSubUnitOf(ctx context.Context, department *Document, rootID string) (bool, error) {
	return walkParents(ctx, m, department, rootID, defaultMaxDepth)
}

// GetDepartmentChief returns the first chief of the department.
func (m *Memory) GetDepartmentChief(_ context.Context, department *Document) (string, bool, error) {
	id, ok := department.First(contract.HasChief)
	return id, ok, nil
}

// RunStoredQuery returns the configured contract ids.
func (m *Memory) RunStoredQuery(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uniqueIDs(m.storedQuery), nil
}
