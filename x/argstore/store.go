// Package argstore collects argument rows emitted by the args parser and
// serves them back to queries. It is the in-memory stand-in for the args
// table of the surrounding trace-analysis pipeline.
package argstore

import (
	"strings"
	"sync"

	"github.com/tracekit/protoargs/x/args"
)

// Kind discriminates the value column of a Row.
type Kind string

const (
	KindInt    Kind = "int"
	KindUint   Kind = "uint"
	KindBool   Kind = "bool"
	KindFloat  Kind = "float"
	KindString Kind = "string"
)

// Row is one emitted argument record in emission order.
type Row struct {
	Key     string `json:"key"`
	FlatKey string `json:"flat_key"`
	Kind    Kind   `json:"kind"`

	Int   int64   `json:"int,omitempty"`
	Uint  uint64  `json:"uint,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"string,omitempty"`
}

// Store is an append-only row sink implementing args.Delegate. Emission
// order is preserved; rows are never deduplicated or aggregated. Safe for
// concurrent readers and writers, though a single parse tree always
// appends from one goroutine.
type Store struct {
	mu   sync.RWMutex
	rows []Row
}

var _ args.Delegate = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) AddInteger(key args.Key, value int64) {
	s.append(Row{Key: key.Key, FlatKey: key.FlatKey, Kind: KindInt, Int: value})
}

func (s *Store) AddUnsignedInteger(key args.Key, value uint64) {
	s.append(Row{Key: key.Key, FlatKey: key.FlatKey, Kind: KindUint, Uint: value})
}

func (s *Store) AddBoolean(key args.Key, value bool) {
	s.append(Row{Key: key.Key, FlatKey: key.FlatKey, Kind: KindBool, Bool: value})
}

func (s *Store) AddDouble(key args.Key, value float64) {
	s.append(Row{Key: key.Key, FlatKey: key.FlatKey, Kind: KindFloat, Float: value})
}

func (s *Store) AddString(key args.Key, value string) {
	s.append(Row{Key: key.Key, FlatKey: key.FlatKey, Kind: KindString, Str: value})
}

func (s *Store) append(row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
}

// Rows returns a copy of all collected rows in emission order.
func (s *Store) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// ByFlatKey returns rows whose flat key equals prefix or descends from it
// (prefix followed by a dot).
func (s *Store) ByFlatKey(prefix string) []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Row
	for _, row := range s.rows {
		if row.FlatKey == prefix || strings.HasPrefix(row.FlatKey, prefix+".") {
			out = append(out, row)
		}
	}
	return out
}

// Len returns the number of collected rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Reset discards all rows.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
}
