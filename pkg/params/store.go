// Package params is the host's parameter store: options are declared with
// a default, may be overridden before or after declaration, and are read
// back with typed getters that fail on missing or mistyped values.
package params

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var (
	// ErrNotDeclared is returned when reading an option that was never declared.
	ErrNotDeclared = errors.New("params: not declared")

	// ErrType is returned when a value cannot be read as the requested type.
	ErrType = errors.New("params: wrong type")
)

// Store is the parameter store consumed by the lifecycle controller.
type Store interface {
	Declare(name string, def any)
	Set(name string, value any)
	String(name string) (string, error)
	Int(name string) (int, error)
	Uint8(name string) (uint8, error)
	Millis(name string) (time.Duration, error)
}

// ViperStore implements Store on top of a private viper instance.
// Overrides win over declared defaults regardless of the order they were set.
type ViperStore struct {
	mu       sync.RWMutex
	v        *viper.Viper
	declared map[string]bool
}

// NewStore creates an empty store.
func NewStore() *ViperStore {
	return &ViperStore{
		v:        viper.New(),
		declared: make(map[string]bool),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Declare registers name with a default. Declaring again replaces the default.
func (s *ViperStore) Declare(name string, def any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.SetDefault(key(name), def)
	s.declared[key(name)] = true
}

// Set overrides the value of name.
func (s *ViperStore) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key(name), value)
}

// Merge overrides every value in m.
func (s *ViperStore) Merge(m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.v.Set(key(k), v)
	}
}

// Declared returns the declared names in sorted order.
func (s *ViperStore) Declared() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.declared))
	for n := range s.declared {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *ViperStore) get(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.declared[key(name)] {
		return nil, fmt.Errorf("%w: %s", ErrNotDeclared, name)
	}
	return s.v.Get(key(name)), nil
}

func (s *ViperStore) String(name string) (string, error) {
	raw, err := s.get(name)
	if err != nil {
		return "", err
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrType, name, raw)
	}
	return str, nil
}

func (s *ViperStore) Int(name string) (int, error) {
	raw, err := s.get(name)
	if err != nil {
		return 0, err
	}
	var i int64
	switch v := raw.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, err = cast.ToInt64E(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrType, name, err)
		}
		if u, ok := v.(uint64); ok && u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s=%d out of range", ErrType, name, u)
		}
	case float32, float64:
		f := cast.ToFloat64(v)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %s=%v is not a whole number", ErrType, name, f)
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			return 0, fmt.Errorf("%w: %s=%v out of range", ErrType, name, f)
		}
		i = int64(f)
	case string:
		i, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q is not a decimal integer", ErrType, name, v)
		}
	default:
		return 0, fmt.Errorf("%w: %s is %T, want integer", ErrType, name, raw)
	}
	if i > math.MaxInt32 || i < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s=%d out of range", ErrType, name, i)
	}
	return int(i), nil
}

func (s *ViperStore) Uint8(name string) (uint8, error) {
	i, err := s.Int(name)
	if err != nil {
		return 0, err
	}
	if i < 0 || i > math.MaxUint8 {
		return 0, fmt.Errorf("%w: %s=%d does not fit uint8", ErrType, name, i)
	}
	return uint8(i), nil
}

// Millis reads an integer option expressed in milliseconds.
func (s *ViperStore) Millis(name string) (time.Duration, error) {
	i, err := s.Int(name)
	if err != nil {
		return 0, err
	}
	return time.Duration(i) * time.Millisecond, nil
}
