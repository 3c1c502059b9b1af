package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

// DemoSource is the source id of the built-in sample ledger.
const DemoSource = "demo"

// Store serves raw tables from memory.
type Store struct {
	mu     sync.Mutex
	tables map[string]table.Raw
	fail   error
	calls  int
}

var _ ports.TableFetcher = (*Store)(nil)

func New() *Store {
	return &Store{tables: map[string]table.Raw{}}
}

// NewFromDir seeds a store from CSV files. dir/<source>.csv registers the
// source with an empty sub-range; dir/<source>/<tab>.csv registers a tab.
// With no files the demo ledger is loaded.
func NewFromDir(dir string) *Store {
	s := New()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			tabs, _ := os.ReadDir(path)
			for _, tab := range tabs {
				if raw, ok := readCSV(filepath.Join(path, tab.Name())); ok {
					s.Put(e.Name(), trimExt(tab.Name()), raw)
				}
			}
			continue
		}
		if raw, ok := readCSV(path); ok {
			s.Put(trimExt(e.Name()), "", raw)
		}
	}
	if s.Len() == 0 {
		s.Put(DemoSource, "", Demo())
	}
	return s
}

// Put stores a copy of raw under (sourceID, subRange).
func (s *Store) Put(sourceID, subRange string, raw table.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[ports.Key(sourceID, subRange)] = clone(raw)
}

// FailWith makes every Fetch return err until cleared with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Fetch returns a copy of the stored table.
func (s *Store) Fetch(ctx context.Context, sourceID, subRange string) (table.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrSourceUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return nil, s.fail
	}
	raw, ok := s.tables[ports.Key(sourceID, subRange)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrRangeNotFound, ports.Key(sourceID, subRange))
	}
	return clone(raw), nil
}

// Calls reports how many times Fetch was invoked.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Len reports the number of stored tables.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}

// Demo returns a small P&L ledger with a title row and KPI rows.
func Demo() table.Raw {
	return table.Raw{
		{"Pioneer Broadband P&L"},
		{"Month", "Revenue", "Expense", "MRR", "Subscribers", "EBITDA"},
		{"Jan", "$10,000", "$4,000", "$9,500", "190", "$6,000"},
		{"Feb", "$12,000", "$5,000", "$11,000", "215", "$7,000"},
		{"Mar", "$13,500", "$5,200", "$12,600", "240", "$8,300"},
		{"Apr", "$15,000", "$6,100", "$14,000", "262", "$8,900"},
	}
}

func readCSV(path string) (table.Raw, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, false
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	raw, err := table.ReadCSV(f)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func clone(raw table.Raw) table.Raw {
	out := make(table.Raw, len(raw))
	for i, r := range raw {
		out[i] = append([]string(nil), r...)
	}
	return out
}
