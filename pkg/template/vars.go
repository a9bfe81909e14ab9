package template

import "sort"

// Vars is an immutable variable context. Methods that change it return a
// new value and leave the receiver untouched, so a context can be shared
// across pages without leaking keys between them.
type Vars struct {
	m map[string]any
}

// NewVars copies m into a new context.
func NewVars(m map[string]any) Vars {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return Vars{m: c}
}

// Merge returns a context holding the keys of v and other; other wins on
// collision.
func (v Vars) Merge(other Vars) Vars {
	c := make(map[string]any, len(v.m)+len(other.m))
	for k, val := range v.m {
		c[k] = val
	}
	for k, val := range other.m {
		c[k] = val
	}
	return Vars{m: c}
}

// With returns a context with key set to value.
func (v Vars) With(key string, value any) Vars {
	c := make(map[string]any, len(v.m)+1)
	for k, val := range v.m {
		c[k] = val
	}
	c[key] = value
	return Vars{m: c}
}

// Without returns a context with key removed.
func (v Vars) Without(key string) Vars {
	if _, ok := v.m[key]; !ok {
		return v
	}
	c := make(map[string]any, len(v.m))
	for k, val := range v.m {
		if k != key {
			c[k] = val
		}
	}
	return Vars{m: c}
}

// Rename moves the value at from to to. It is a no-op when from is absent.
func (v Vars) Rename(from, to string) Vars {
	val, ok := v.m[from]
	if !ok || from == to {
		return v
	}
	return v.Without(from).With(to, val)
}

// Get returns the value of key.
func (v Vars) Get(key string) (any, bool) {
	val, ok := v.m[key]
	return val, ok
}

// Has reports whether key is set.
func (v Vars) Has(key string) bool {
	_, ok := v.m[key]
	return ok
}

// Len returns the number of variables.
func (v Vars) Len() int { return len(v.m) }

// Keys returns the variable names, sorted.
func (v Vars) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the variables.
func (v Vars) Map() map[string]any {
	c := make(map[string]any, len(v.m))
	for k, val := range v.m {
		c[k] = val
	}
	return c
}
