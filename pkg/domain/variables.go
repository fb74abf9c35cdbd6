package domain

import (
	"fmt"
	"sort"
)

// VariableStore is the single name-keyed variable table of a schedule.
// A name belongs to exactly one kind; reads and writes are type-checked.
type VariableStore struct {
	vars map[string]Variable
}

// NewVariableStore creates an empty store.
func NewVariableStore() *VariableStore {
	return &VariableStore{vars: make(map[string]Variable)}
}

// Lookup returns the raw variable.
func (s *VariableStore) Lookup(name string) (Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Kind returns the kind a name is registered with.
func (s *VariableStore) Kind(name string) (Kind, bool) {
	v, ok := s.vars[name]
	if !ok {
		return "", false
	}
	return v.Kind(), true
}

// Has reports whether a variable exists under name.
func (s *VariableStore) Has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Len returns the number of variables.
func (s *VariableStore) Len() int { return len(s.vars) }

// Get returns the current value of name, checking its kind.
func (s *VariableStore) Get(name string, kind Kind) (Value, error) {
	v, ok := s.vars[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	if v.Kind() != kind {
		return Value{}, fmt.Errorf("variable '%s': %w", name, mismatch(kind, v.Kind()))
	}
	return v.Current, nil
}

// GetOriginal returns the original value of name, checking its kind.
func (s *VariableStore) GetOriginal(name string, kind Kind) (Value, error) {
	v, ok := s.vars[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	if v.Kind() != kind {
		return Value{}, fmt.Errorf("variable '%s': %w", name, mismatch(kind, v.Kind()))
	}
	return v.Original, nil
}

// Set updates the current value of name. A missing variable is created with
// current == original == val.
func (s *VariableStore) Set(name string, val Value) error {
	if val.IsZero() {
		return fmt.Errorf("variable '%s': value has no kind", name)
	}
	v, ok := s.vars[name]
	if !ok {
		s.vars[name] = Variable{Current: val, Original: val}
		return nil
	}
	if v.Kind() != val.Kind() {
		return fmt.Errorf("variable '%s': %w", name, mismatch(v.Kind(), val.Kind()))
	}
	v.Current = val
	s.vars[name] = v
	return nil
}

// SetOriginal updates the reset value of name. A missing variable is created
// with current == original == val.
func (s *VariableStore) SetOriginal(name string, val Value) error {
	if val.IsZero() {
		return fmt.Errorf("variable '%s': value has no kind", name)
	}
	v, ok := s.vars[name]
	if !ok {
		s.vars[name] = Variable{Current: val, Original: val}
		return nil
	}
	if v.Kind() != val.Kind() {
		return fmt.Errorf("variable '%s': %w", name, mismatch(v.Kind(), val.Kind()))
	}
	v.Original = val
	s.vars[name] = v
	return nil
}

// Put stores a variable as-is, replacing any previous entry.
func (s *VariableStore) Put(name string, v Variable) error {
	if v.Current.IsZero() || v.Current.Kind() != v.Original.Kind() {
		return fmt.Errorf("variable '%s': %w: current %s, original %s",
			name, ErrTypeMismatch, v.Current.Kind(), v.Original.Kind())
	}
	s.vars[name] = v
	return nil
}

// GetFloat returns the current value of a float variable.
func (s *VariableStore) GetFloat(name string) (float64, error) {
	v, err := s.Get(name, KindFloat)
	if err != nil {
		return 0, err
	}
	return v.AsFloat()
}

// GetBool returns the current value of a boolean variable.
func (s *VariableStore) GetBool(name string) (bool, error) {
	v, err := s.Get(name, KindBool)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

// GetString returns the current value of a string variable.
func (s *VariableStore) GetString(name string) (string, error) {
	v, err := s.Get(name, KindString)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// GetOriginalFloat returns the reset value of a float variable.
func (s *VariableStore) GetOriginalFloat(name string) (float64, error) {
	v, err := s.GetOriginal(name, KindFloat)
	if err != nil {
		return 0, err
	}
	return v.AsFloat()
}

// GetOriginalBool returns the reset value of a boolean variable.
func (s *VariableStore) GetOriginalBool(name string) (bool, error) {
	v, err := s.GetOriginal(name, KindBool)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

// GetOriginalString returns the reset value of a string variable.
func (s *VariableStore) GetOriginalString(name string) (string, error) {
	v, err := s.GetOriginal(name, KindString)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

func (s *VariableStore) SetFloat(name string, v float64) error { return s.Set(name, FloatValue(v)) }
func (s *VariableStore) SetBool(name string, v bool) error     { return s.Set(name, BoolValue(v)) }
func (s *VariableStore) SetString(name string, v string) error { return s.Set(name, StringValue(v)) }

func (s *VariableStore) SetOriginalFloat(name string, v float64) error {
	return s.SetOriginal(name, FloatValue(v))
}

func (s *VariableStore) SetOriginalBool(name string, v bool) error {
	return s.SetOriginal(name, BoolValue(v))
}

func (s *VariableStore) SetOriginalString(name string, v string) error {
	return s.SetOriginal(name, StringValue(v))
}

// Delete drops a variable. Referential checks are the caller's job.
func (s *VariableStore) Delete(name string) bool {
	if _, ok := s.vars[name]; !ok {
		return false
	}
	delete(s.vars, name)
	return true
}

// Names returns the sorted names of all variables of a kind.
// An empty kind returns every name.
func (s *VariableStore) Names(kind Kind) []string {
	names := make([]string, 0, len(s.vars))
	for name, v := range s.vars {
		if kind == "" || v.Kind() == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset restores every current value to its original.
func (s *VariableStore) Reset() {
	for name, v := range s.vars {
		v.Current = v.Original
		s.vars[name] = v
	}
}

// Snapshot returns the current values formatted as text, keyed by name.
func (s *VariableStore) Snapshot() map[string]string {
	out := make(map[string]string, len(s.vars))
	for name, v := range s.vars {
		out[name] = v.Current.String()
	}
	return out
}

// Clone returns an independent copy.
func (s *VariableStore) Clone() *VariableStore {
	next := NewVariableStore()
	for name, v := range s.vars {
		next.vars[name] = v
	}
	return next
}
