package modelcache

import (
	"fmt"
	"strings"
	"sync"
)

// Type identifies a record type, like a schema+table or module+class pair.
type Type struct {
	Namespace string
	Name      string
}

// Label returns "<namespace>.<name>" as used in keys.
func (t Type) Label() string { return t.Namespace + "." + t.Name }

// Descriptor declares how records of one type are addressed. Build it once at
// type registration and pass it in Options.
type Descriptor struct {
	Type
	// Primary is the attribute holding the primary key.
	Primary string
	// Unique lists attributes whose values are unique across the type.
	// StoreUnique writes one reference per entry.
	Unique []string
}

const reservedKeyChars = ".:[],="

// Normalize lowercases the type and validates the descriptor.
func (d Descriptor) Normalize() (Descriptor, error) {
	out := Descriptor{
		Type: Type{
			Namespace: strings.ToLower(strings.TrimSpace(d.Namespace)),
			Name:      strings.ToLower(strings.TrimSpace(d.Name)),
		},
		Primary: strings.TrimSpace(d.Primary),
	}
	switch {
	case out.Namespace == "" || out.Name == "":
		return Descriptor{}, fmt.Errorf("%w: namespace and name are required", ErrInvalidDescriptor)
	case strings.ContainsAny(out.Namespace, reservedKeyChars) || strings.ContainsAny(out.Name, reservedKeyChars):
		return Descriptor{}, fmt.Errorf("%w: %q may not contain any of %q", ErrInvalidDescriptor, out.Label(), reservedKeyChars)
	case out.Primary == "":
		return Descriptor{}, fmt.Errorf("%w: %s: primary attribute is required", ErrInvalidDescriptor, out.Label())
	}

	seen := map[string]struct{}{out.Primary: {}}
	for _, u := range d.Unique {
		u = strings.TrimSpace(u)
		if u == "" {
			return Descriptor{}, fmt.Errorf("%w: %s: empty unique attribute", ErrInvalidDescriptor, out.Label())
		}
		if _, dup := seen[u]; dup {
			return Descriptor{}, fmt.Errorf("%w: %s: attribute %q declared twice", ErrInvalidDescriptor, out.Label(), u)
		}
		seen[u] = struct{}{}
		out.Unique = append(out.Unique, u)
	}
	return out, nil
}

// IsUnique reports whether attr is the primary or a declared unique attribute.
func (d Descriptor) IsUnique(attr string) bool {
	if attr == d.Primary {
		return true
	}
	for _, u := range d.Unique {
		if u == attr {
			return true
		}
	}
	return false
}

// Registry holds the descriptors of every cached record type of a process.
type Registry struct {
	mu      sync.RWMutex
	byLabel map[string]Descriptor
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{byLabel: make(map[string]Descriptor)}
}

// Register normalizes d and adds it. A type may be registered once.
func (r *Registry) Register(d Descriptor) (Descriptor, error) {
	nd, err := d.Normalize()
	if err != nil {
		return Descriptor{}, err
	}
	label := nd.Label()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byLabel[label]; dup {
		return Descriptor{}, fmt.Errorf("%w: %s already registered", ErrInvalidDescriptor, label)
	}
	r.byLabel[label] = nd
	r.order = append(r.order, label)
	return nd, nil
}

// Lookup finds a descriptor by "<namespace>.<name>" (case-insensitive).
func (r *Registry) Lookup(label string) (Descriptor, bool) {
	r.mu.RLock()
	d, ok := r.byLabel[strings.ToLower(label)]
	r.mu.RUnlock()
	return d, ok
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, l := range r.order {
		out = append(out, r.byLabel[l])
	}
	return out
}
