package defs

import "fmt"

// Registry maps definition names to definitions, keeping registration order
// so that startup passes walk types deterministically.
type Registry struct {
	byName map[string]*Definition
	order  []*Definition
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Definition)}
}

// Add registers def. A name may be registered once; a second Add with the
// same name fails without touching the table.
func (r *Registry) Add(def *Definition) error {
	if def == nil || def.Name == "" {
		return ErrEmptyName
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("%s: %w", def.Name, ErrDuplicateName)
	}
	if def.ShortID != 0 {
		if other, taken := r.ByShortID(def.Kind, def.ShortID); taken {
			return fmt.Errorf("%s: id %d held by %s: %w", def.Name, def.ShortID, other.Name, ErrIDCollision)
		}
	}
	r.byName[def.Name] = def
	r.order = append(r.order, def)
	return nil
}

// Remove deregisters name and returns the removed definition. Removing an
// unknown name is a no-op.
func (r *Registry) Remove(name string) (*Definition, bool) {
	def, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	delete(r.byName, name)
	for i, cur := range r.order {
		if cur == def {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return def, true
}

func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// MustGet panics on a missing name. Only for fixtures.
func (r *Registry) MustGet(name string) *Definition {
	def, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("definition %q not registered", name))
	}
	return def
}

// ByShortID finds the live definition of kind holding id.
func (r *Registry) ByShortID(kind Kind, id uint16) (*Definition, bool) {
	for _, def := range r.order {
		if def.Kind == kind && def.ShortID == id {
			return def, true
		}
	}
	return nil, false
}

// All returns a snapshot of the registered definitions in registration
// order. Callers may mutate the registry while ranging over the snapshot.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}
