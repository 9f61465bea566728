package engine

import "sync"

// tableMux hands out one mutex per table so that all mutations of a
// table's hand are serialized while different tables proceed in parallel.
// Mutexes are never reclaimed; the set of tables is small and fixed by
// configuration.
type tableMux struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTableMux() *tableMux {
	return &tableMux{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the table's mutex and returns its unlock func.
func (m *tableMux) lock(tableID string) func() {
	m.mu.Lock()
	l, ok := m.locks[tableID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[tableID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}
