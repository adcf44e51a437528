package object

import (
	"fmt"
	"sync"
)

// Store is an in-memory content-addressed object store keyed by git object
// id. It holds objects in their raw (uncompressed, header-less) form.
type Store struct {
	mu      sync.RWMutex
	objects map[Hash]storedObject
}

type storedObject struct {
	objType ObjectType
	data    []byte
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{objects: make(map[Hash]storedObject)}
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[h]
	return ok
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Write stores an object and returns its content hash.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	if !objType.Valid() {
		return "", fmt.Errorf("object write: invalid type %q", objType)
	}
	h := HashObject(objType, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[h]; ok {
		return h, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[h] = storedObject{objType: objType, data: buf}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content. The
// returned slice must not be modified.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	s.mu.RLock()
	obj, ok := s.objects[h]
	s.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}
	return obj.objType, obj.data, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob stores raw file content.
func (s *Store) WriteBlob(data []byte) (Hash, error) {
	return s.Write(TypeBlob, data)
}

// WriteTree serializes and stores a TreeObj in canonical order.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

// WriteTag serializes and stores an annotated tag.
func (s *Store) WriteTag(t *TagObj) (Hash, error) {
	return s.Write(TypeTag, MarshalTag(t))
}

// ReadTag reads and deserializes an annotated tag.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	data, err := s.readTyped(h, TypeTag)
	if err != nil {
		return nil, err
	}
	return UnmarshalTag(data)
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}
