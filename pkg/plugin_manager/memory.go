package plugin_manager

import "sync"

// Memory is a map shared by every plugin for the lifetime of the process.
type Memory struct {
	mtx    sync.RWMutex
	values map[string]interface{}
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]interface{})}
}

func (m *Memory) Get(key string) (interface{}, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key string, value interface{}) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.values[key] = value
}

func (m *Memory) Delete(key string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.values, key)
}

// Update replaces the value of key with the result of f, atomically.
func (m *Memory) Update(key string, f func(old interface{}, ok bool) interface{}) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	old, ok := m.values[key]
	m.values[key] = f(old, ok)
}

func (m *Memory) Len() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return len(m.values)
}
