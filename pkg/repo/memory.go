package repo

import (
	"fmt"
	"path"
	"sync"

	"github.com/odvcencio/evtag/pkg/evtag"
	"github.com/odvcencio/evtag/pkg/object"
)

// Memory is an in-memory repository: an object store, references, a
// checked-out commit and linked sub-projects.
type Memory struct {
	Store *object.Store

	name string

	mu          sync.RWMutex
	refs        map[string]object.Hash
	head        object.Hash
	subprojects map[string]*Memory
	tagLinks    map[object.Hash][]object.TreeEntry
}

var _ evtag.Database = (*Memory)(nil)

// NewMemory creates an empty repository. name is reported as its Location.
func NewMemory(name string) *Memory {
	return &Memory{
		Store:       object.NewStore(),
		name:        name,
		refs:        make(map[string]object.Hash),
		subprojects: make(map[string]*Memory),
		tagLinks:    make(map[object.Hash][]object.TreeEntry),
	}
}

// Location returns the name the repository was created with.
func (m *Memory) Location() string {
	return m.name
}

// SetRef points a full reference name at h.
func (m *Memory) SetRef(name string, h object.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[name] = h
}

// DeleteRef removes a reference.
func (m *Memory) DeleteRef(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refs, name)
}

// Checkout records h as the checked-out commit.
func (m *Memory) Checkout(h object.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = h
}

// LinkSubproject makes sub reachable as the sub-project at p.
func (m *Memory) LinkSubproject(p string, sub *Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subprojects[path.Clean(p)] = sub
}

// AddTagLink lists a tag-kind entry after the stored entries of tree. Git
// tree encoding cannot express such entries, so they exist only in listings.
func (m *Memory) AddTagLink(tree object.Hash, name string, tag object.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagLinks[tree] = append(m.tagLinks[tree], object.TreeEntry{
		Name: name,
		Hash: tag,
		Type: object.TypeTag,
	})
}

// ResolveRef resolves a full reference name. "HEAD" resolves to the
// checked-out commit.
func (m *Memory) ResolveRef(name string) (object.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "HEAD" && m.head != "" {
		return m.head, nil
	}
	h, ok := m.refs[name]
	if !ok {
		return "", fmt.Errorf("resolve ref %s: %w", name, evtag.ErrRefNotFound)
	}
	return h, nil
}

// ReadObject reads an object from the store.
func (m *Memory) ReadObject(h object.Hash) (object.ObjectType, []byte, error) {
	return m.Store.Read(h)
}

// TreeEntries lists the stored entries of a tree followed by its tag links.
func (m *Memory) TreeEntries(h object.Hash) ([]object.TreeEntry, error) {
	tr, err := m.Store.ReadTree(h)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	extra := m.tagLinks[h]
	m.mu.RUnlock()
	return append(tr.Entries, extra...), nil
}

// OpenSubproject returns the repository linked at p.
func (m *Memory) OpenSubproject(p string) (evtag.Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subprojects[path.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("open sub-project %s: %w", p, evtag.ErrSubprojectNotFound)
	}
	return sub, nil
}

// Head returns the checked-out commit.
func (m *Memory) Head() (object.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.head == "" {
		return "", fmt.Errorf("head of %s: %w", m.name, evtag.ErrNoCheckout)
	}
	return m.head, nil
}
