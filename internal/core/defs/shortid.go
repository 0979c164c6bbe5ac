package defs

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// shortIDSpace is the number of usable ids; 0 means "unassigned".
const shortIDSpace = 1<<16 - 1

// ShortIDPool hands out compact ids per Kind. The first probe for a name is
// seeded from a stable hash of that name, so a definition keeps its id
// across runs as long as nothing else claimed the slot first; collisions
// probe linearly.
type ShortIDPool struct {
	taken map[Kind]map[uint16]string
}

func NewShortIDPool() *ShortIDPool {
	return &ShortIDPool{taken: make(map[Kind]map[uint16]string)}
}

func (p *ShortIDPool) space(kind Kind) map[uint16]string {
	ids, ok := p.taken[kind]
	if !ok {
		ids = make(map[uint16]string)
		p.taken[kind] = ids
	}
	return ids
}

// Claim records an id that a definition already carries, e.g. one loaded by
// the host. It fails if another name holds the id.
func (p *ShortIDPool) Claim(def *Definition) error {
	if def.ShortID == 0 {
		return nil
	}
	ids := p.space(def.Kind)
	if owner, ok := ids[def.ShortID]; ok && owner != def.Name {
		return fmt.Errorf("%s: id %d held by %s: %w", def.Name, def.ShortID, owner, ErrIDCollision)
	}
	ids[def.ShortID] = def.Name
	return nil
}

// Assign gives def the next unused id of its kind and stores it on def.
// Assigning to a definition that already holds a live id is rejected.
func (p *ShortIDPool) Assign(def *Definition) (uint16, error) {
	ids := p.space(def.Kind)
	if def.ShortID != 0 {
		if owner, ok := ids[def.ShortID]; ok && owner == def.Name {
			return 0, fmt.Errorf("%s: %w", def.Name, ErrAlreadyAssigned)
		}
	}
	if len(ids) >= shortIDSpace {
		return 0, fmt.Errorf("%s: kind %s: %w", def.Name, def.Kind, ErrPoolExhausted)
	}

	seed := uint32(xxhash.Sum64String(def.Name) % shortIDSpace)
	for i := uint32(0); i < shortIDSpace; i++ {
		id := uint16(1 + (seed+i)%shortIDSpace)
		if _, used := ids[id]; used {
			continue
		}
		ids[id] = def.Name
		def.ShortID = id
		return id, nil
	}
	return 0, fmt.Errorf("%s: kind %s: %w", def.Name, def.Kind, ErrPoolExhausted)
}

// Release frees def's id if def is its owner and clears it on def.
func (p *ShortIDPool) Release(def *Definition) {
	if def.ShortID == 0 {
		return
	}
	ids := p.space(def.Kind)
	if owner, ok := ids[def.ShortID]; ok && owner == def.Name {
		delete(ids, def.ShortID)
	}
	def.ShortID = 0
}

// Owner returns the name holding id in kind.
func (p *ShortIDPool) Owner(kind Kind, id uint16) (string, bool) {
	name, ok := p.taken[kind][id]
	return name, ok
}

// Len counts the ids in use for kind.
func (p *ShortIDPool) Len(kind Kind) int {
	return len(p.taken[kind])
}
