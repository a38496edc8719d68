package server

import (
	"errors"
	"maps"
	"sync"

	"github.com/gaborage/go-netreq/loader"
	"github.com/gaborage/go-netreq/request"
)

// Document names the fixture server reads and writes.
const (
	DocRedirTestResponse   = "RedirTest1_Response.json"
	DocRedirTest3Response  = "RedirTest3_Response.json"
	DocBootstrapRequest    = "Bootstrap_Request.json"
	DocBootstrapExpected   = "Expected_Request.json"
	DocBootstrapResponse   = "Bootstrap_Response.json"
	DocBootstrapNull       = "Bootstrap_NULLResponse.json"
	DocRecoveryRequest     = "Recovery_Request.json"
	DocRecoveryResponse    = "Recovery_Response.json"
	DocShell               = "Shell.efi"
	DocShellFull           = "Shell_Full.efi"
	dfciMachineDirPrefix   = "dfci/"
	dfciResultPrefix       = "Dfci_Result_"
	dfciApplyPrefix        = "Dfci_Apply_"
	dfciCurrentRequestType = "Current"
)

// Store holds the documents served and collected by the fixture server.
type Store interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
}

// MemoryStore keeps saved documents in memory and falls back to a read-only
// loader for the ones it was never given.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	fallback *loader.Loader
}

// NewMemoryStore creates a store seeded with docs. fallback may be nil.
func NewMemoryStore(docs map[string][]byte, fallback *loader.Loader) *MemoryStore {
	s := &MemoryStore{
		docs:     make(map[string][]byte, len(docs)),
		fallback: fallback,
	}
	maps.Copy(s.docs, docs)
	return s
}

// DefaultDocuments returns the JSON bodies the redirect and bootstrap routes
// answer with when nothing else was configured.
func DefaultDocuments() map[string][]byte {
	return map[string][]byte{
		DocRedirTestResponse:  []byte(`{"test":"RedirTest2","result":"redirect target reached"}`),
		DocRedirTest3Response: []byte(`{"test":"RedirTest3","result":"bootstrap target reached"}`),
		DocBootstrapResponse:  []byte(`{"certificates":"update-required"}`),
		DocBootstrapNull:      []byte(`{}`),
		DocRecoveryResponse:   []byte(`{"packets":[]}`),
	}
}

func (s *MemoryStore) Load(name string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.docs[name]
	s.mu.RUnlock()
	if ok {
		return append([]byte(nil), data...), nil
	}
	if s.fallback == nil {
		return nil, request.NewError(request.KindNotFound, "document "+name+" not found", nil)
	}
	return s.fallback.LoadBytesByName(name)
}

func (s *MemoryStore) Save(name string, data []byte) error {
	if name == "" {
		return errors.New("document name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = append([]byte(nil), data...)
	return nil
}

// Has reports whether name can be loaded.
func (s *MemoryStore) Has(name string) bool {
	_, err := s.Load(name)
	return err == nil
}
