package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"gopkg.in/yaml.v3"
)

// Document is the persisted registry state
type Document struct {
	Enabled  []string  `yaml:"enabled"`
	Profiles []Profile `yaml:"profiles"`
}

// rawDocument defers decoding of each entry so one bad entry cannot poison
// the rest
type rawDocument struct {
	Enabled  []yaml.Node `yaml:"enabled"`
	Profiles []yaml.Node `yaml:"profiles"`
}

// Store reads and writes the registry document as YAML
type Store struct {
	path string

	mu   sync.Mutex
	last []byte
}

// NewStore creates a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing file returns an error satisfying
// errors.Is(err, os.ErrNotExist); an unparseable file returns
// model.ErrPersistedStateCorrupt. Individual entries that fail to decode are
// dropped and logged.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	s.mu.Lock()
	s.last = data
	s.mu.Unlock()

	return decodeDocument(data)
}

// Changed reports whether the file differs from what this store last read or
// wrote. Used to ignore watcher events caused by our own saves.
func (s *Store) Changed() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !bytes.Equal(data, s.last)
}

// Save writes the document atomically
func (s *Store) Save(doc Document) error {
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	s.last = data
	return nil
}

func decodeDocument(data []byte) (*Document, error) {
	log := logger.WithComponent("registry")

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistedStateCorrupt, err)
	}

	doc := &Document{}
	for _, node := range raw.Enabled {
		var id string
		if err := node.Decode(&id); err != nil || id == "" {
			log.Warn().Int("line", node.Line).Msg("Dropping unreadable enabled entry")
			continue
		}
		doc.Enabled = append(doc.Enabled, id)
	}

	for _, node := range raw.Profiles {
		var p Profile
		err := node.Decode(&p)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			log.Warn().
				Err(errors.Join(model.ErrPersistedStateCorrupt, err)).
				Int("line", node.Line).
				Msg("Dropping unreadable profile entry")
			continue
		}
		doc.Profiles = append(doc.Profiles, p.normalize())
	}

	return doc, nil
}
