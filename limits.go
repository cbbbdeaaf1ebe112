package rbf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/njchilds90/rbf/symbolic"
)

// DiffKey is the immutable encoding of a derivative multi-index, e.g. "(1,0)".
// It keys both the limits mapping and the compile cache.
type DiffKey string

// Key encodes a derivative multi-index.
func Key(diff ...int) DiffKey {
	parts := make([]string, len(diff))
	for i, d := range diff {
		parts[i] = strconv.Itoa(d)
	}
	return DiffKey("(" + strings.Join(parts, ",") + ")")
}

// Diff decodes the multi-index. Malformed keys return an error.
func (k DiffKey) Diff() ([]int, error) {
	s := string(k)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("rbf: malformed derivative key %q", s)
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return []int{}, nil
	}
	fields := strings.Split(s, ",")
	diff := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("rbf: malformed derivative key %q: %w", string(k), err)
		}
		diff[i] = n
	}
	return diff, nil
}

func (k DiffKey) String() string { return string(k) }

// Limits holds known values of an RBF and its derivatives as x approaches
// the center, keyed by derivative multi-index. Every mutation invalidates
// the compile cache of the owning RBF.
type Limits interface {
	Get(key DiffKey) (symbolic.Expr, bool)
	// Set stores value under key. A nil value deletes the entry.
	Set(key DiffKey, value symbolic.Expr)
	Delete(key DiffKey)
	Update(values map[DiffKey]symbolic.Expr)
	Len() int
	// Keys returns the stored keys in sorted order.
	Keys() []DiffKey
}

// limitMap is the Limits implementation. onChange runs after the lock is
// released so it may call back into the owner.
type limitMap struct {
	mu       sync.RWMutex
	values   map[DiffKey]symbolic.Expr
	onChange func()
}

var _ Limits = (*limitMap)(nil)

func newLimitMap(onChange func()) *limitMap {
	return &limitMap{values: map[DiffKey]symbolic.Expr{}, onChange: onChange}
}

func (m *limitMap) Get(key DiffKey) (symbolic.Expr, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *limitMap) Set(key DiffKey, value symbolic.Expr) {
	m.mu.Lock()
	if value == nil {
		delete(m.values, key)
	} else {
		m.values[key] = value
	}
	m.mu.Unlock()
	m.changed()
}

func (m *limitMap) Delete(key DiffKey) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	m.changed()
}

func (m *limitMap) Update(values map[DiffKey]symbolic.Expr) {
	m.mu.Lock()
	for k, v := range values {
		if v == nil {
			delete(m.values, k)
			continue
		}
		m.values[k] = v
	}
	m.mu.Unlock()
	m.changed()
}

// replace swaps the whole contents for values.
func (m *limitMap) replace(values map[DiffKey]symbolic.Expr) {
	m.mu.Lock()
	m.values = make(map[DiffKey]symbolic.Expr, len(values))
	for k, v := range values {
		if v != nil {
			m.values[k] = v
		}
	}
	m.mu.Unlock()
	m.changed()
}

func (m *limitMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

func (m *limitMap) Keys() []DiffKey {
	m.mu.RLock()
	keys := make([]DiffKey, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (m *limitMap) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}
