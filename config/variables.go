package config

import "path/filepath"

// Variables returns the variable bindings recorded for dir, or an empty
// map if none are recorded.
func (m *Manager) Variables(dir string) map[string][]string {
	store, ok := m.data.PerDirectoryVariables[normalizeDir(dir)]
	if !ok {
		return map[string][]string{}
	}
	return store.Variables
}

// SetVariable binds name to values under dir, replacing any prior binding.
func (m *Manager) SetVariable(dir, name string, values []string) {
	key := normalizeDir(dir)
	if m.data.PerDirectoryVariables == nil {
		m.data.PerDirectoryVariables = map[string]VariablesStore{}
	}
	store, ok := m.data.PerDirectoryVariables[key]
	if !ok {
		store = VariablesStore{Variables: map[string][]string{}}
	}
	if store.Variables == nil {
		store.Variables = map[string][]string{}
	}
	store.Variables[name] = values
	m.data.PerDirectoryVariables[key] = store
}

// DeleteVariable removes name from dir's variable bindings.
func (m *Manager) DeleteVariable(dir, name string) {
	key := normalizeDir(dir)
	store, ok := m.data.PerDirectoryVariables[key]
	if !ok {
		return
	}
	delete(store.Variables, name)
	m.data.PerDirectoryVariables[key] = store
}

func normalizeDir(dir string) string {
	if dir == "" {
		return "."
	}
	return filepath.Clean(dir)
}
