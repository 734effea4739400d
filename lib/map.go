package lib

import (
	"sync"
)

// Map is a generic map guarded by RWMutex. The zero value is ready to use.
type Map[K comparable, V any] struct {
	sync.RWMutex
	m map[K]V
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	m.RLock()
	v, found := m.m[key]
	m.RUnlock()
	return v, found
}

func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	m.Lock()
	if m.m == nil {
		m.m = make(map[K]V)
	}
	if x, exist := m.m[key]; exist {
		m.Unlock()
		return x, true
	}
	m.m[key] = value
	m.Unlock()
	return value, false
}

// LoadOrCompute returns the value for the key. If there is no value yet, it
// calls build without holding the lock and stores the result unless another
// goroutine got there first. Errors are not cached.
func (m *Map[K, V]) LoadOrCompute(key K, build func() (V, error)) (V, error) {
	if v, found := m.Load(key); found {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return v, err
	}
	v, _ = m.LoadOrStore(key, v)
	return v, nil
}
