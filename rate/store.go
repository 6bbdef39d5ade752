package rate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// StoreMeta describes a parameter store's provenance and progress.
type StoreMeta struct {
	RunID     string            `json:"run_id"`
	Target    int               `json:"target"`
	BatchSize int               `json:"batch_size"`
	Completed int               `json:"completed"`
	Labels    map[string]string `json:"labels,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ParamStore is an on-disk dictionary of equally long parameter arrays,
// one entry per sampled event. The whole store is rewritten atomically on
// every Flush, so a crash leaves either the previous or the new state,
// never a torn file.
type ParamStore struct {
	path   string
	Meta   StoreMeta
	Fields map[string][]float64
}

// storeFile is the JSON layout on disk.
type storeFile struct {
	Meta   StoreMeta            `json:"meta"`
	Fields map[string][]float64 `json:"fields"`
}

// NewParamStore creates an empty store that will persist to path. A fresh
// run id is assigned when meta carries none.
func NewParamStore(path string, meta StoreMeta) *ParamStore {
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	now := time.Now().UTC()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	return &ParamStore{
		path:   path,
		Meta:   meta,
		Fields: make(map[string][]float64),
	}
}

// LoadParamStore reads a store back from disk.
func LoadParamStore(path string) (*ParamStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter store %s: %w", path, err)
	}
	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding parameter store %s: %w", path, err)
	}
	if f.Fields == nil {
		f.Fields = make(map[string][]float64)
	}
	n := -1
	for name, vals := range f.Fields {
		if n == -1 {
			n = len(vals)
		}
		if len(vals) != n {
			return nil, fmt.Errorf("parameter store %s is ragged: field %q has %d values, others %d",
				path, name, len(vals), n)
		}
	}
	return &ParamStore{path: path, Meta: f.Meta, Fields: f.Fields}, nil
}

// Path returns where the store persists.
func (s *ParamStore) Path() string { return s.path }

// Len returns the number of events held.
func (s *ParamStore) Len() int {
	for _, vals := range s.Fields {
		return len(vals)
	}
	return 0
}

// Field returns the named array, or nil when absent.
func (s *ParamStore) Field(name string) []float64 {
	return s.Fields[name]
}

// Append adds one batch of events. The first append fixes the field set;
// every later batch must carry exactly the same fields, and all arrays in
// a batch must share one length.
func (s *ParamStore) Append(batch map[string][]float64) error {
	if len(batch) == 0 {
		return fmt.Errorf("batch has no fields")
	}
	n := -1
	for name, vals := range batch {
		if n == -1 {
			n = len(vals)
		}
		if len(vals) != n {
			return fmt.Errorf("ragged batch: field %q has %d values, want %d", name, len(vals), n)
		}
	}
	if n == 0 {
		return fmt.Errorf("batch arrays are empty")
	}

	if len(s.Fields) > 0 {
		if len(batch) != len(s.Fields) {
			return fmt.Errorf("batch has %d fields, store has %d", len(batch), len(s.Fields))
		}
		for name := range s.Fields {
			if _, ok := batch[name]; !ok {
				return fmt.Errorf("batch is missing field %q", name)
			}
		}
	}

	for name, vals := range batch {
		s.Fields[name] = append(s.Fields[name], vals...)
	}
	return nil
}

// Flush rewrites the store on disk: temp file in the same directory, then
// rename.
func (s *ParamStore) Flush() error {
	s.Meta.Completed = s.Len()
	s.Meta.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(storeFile{Meta: s.Meta, Fields: s.Fields})
	if err != nil {
		return fmt.Errorf("encoding parameter store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publishing %s: %w", s.path, err)
	}
	return nil
}
