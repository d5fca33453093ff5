// Package properties holds the name -> value store that feeds ${name}
// interpolation into action parameters.
package properties

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches the $${ escape or a ${name} reference.
var tokenPattern = regexp.MustCompile(`\$\$\{|\$\{([^{}]*)\}`)

// UnresolvedPropertyError is returned when a template references a name
// that is not set at interpolation time.
type UnresolvedPropertyError struct {
	Name string
}

func (e *UnresolvedPropertyError) Error() string {
	return fmt.Sprintf("unresolved property ${%s}", e.Name)
}

// CircularPropertyError is returned by ExpandAll when static values
// reference each other in a loop.
type CircularPropertyError struct {
	Chain []string
}

func (e *CircularPropertyError) Error() string {
	return fmt.Sprintf("circular property reference: %s", strings.Join(e.Chain, " -> "))
}

// Store maps property names to values. Last writer wins.
// It is not safe for concurrent use.
type Store struct {
	values map[string]string
}

// NewStore creates a store seeded with a copy of initial.
func NewStore(initial map[string]string) *Store {
	s := &Store{values: make(map[string]string, len(initial))}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Set inserts or overwrites a property.
func (s *Store) Set(name, value string) {
	s.values[name] = value
}

// Get returns the value of name and whether it is set.
func (s *Store) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names returns all property names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of properties.
func (s *Store) Len() int { return len(s.values) }

// Interpolate replaces every ${name} in template with the current value of
// name. Substituted values are not rescanned. $${ produces a literal ${.
func (s *Store) Interpolate(template string) (string, error) {
	return substitute(template, func(name string) (string, error) {
		v, ok := s.values[name]
		if !ok {
			return "", &UnresolvedPropertyError{Name: name}
		}
		return v, nil
	})
}

// InterpolateAll interpolates each element of templates, returning a new slice.
func (s *Store) InterpolateAll(templates []string) ([]string, error) {
	if templates == nil {
		return nil, nil
	}
	out := make([]string, len(templates))
	for i, t := range templates {
		v, err := s.Interpolate(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ExpandAll resolves references between stored values so that each value is
// fully expanded. Every escape and reference is processed exactly once.
func (s *Store) ExpandAll() error {
	resolved := make(map[string]string, len(s.values))
	visiting := make(map[string]bool)
	var chain []string

	var expand func(name string) (string, error)
	expand = func(name string) (string, error) {
		if v, ok := resolved[name]; ok {
			return v, nil
		}
		raw, ok := s.values[name]
		if !ok {
			return "", &UnresolvedPropertyError{Name: name}
		}
		if visiting[name] {
			start := 0
			for i, n := range chain {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, chain[start:]...), name)
			return "", &CircularPropertyError{Chain: cycle}
		}
		visiting[name] = true
		chain = append(chain, name)
		out, err := substitute(raw, expand)
		chain = chain[:len(chain)-1]
		delete(visiting, name)
		if err != nil {
			return "", err
		}
		resolved[name] = out
		return out, nil
	}

	for _, name := range s.Names() {
		if _, err := expand(name); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	s.values = resolved
	return nil
}

// References returns the property names referenced by template, in order of
// first appearance. Escaped references are ignored.
func References(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(template, -1) {
		if m[0] == "$${" || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

func substitute(template string, lookup func(name string) (string, error)) (string, error) {
	if !strings.Contains(template, "${") {
		return template, nil
	}
	var b strings.Builder
	last := 0
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(template[last:loc[0]])
		last = loc[1]
		if loc[2] < 0 {
			// $${ escape
			b.WriteString("${")
			continue
		}
		v, err := lookup(template[loc[2]:loc[3]])
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	b.WriteString(template[last:])
	return b.String(), nil
}
