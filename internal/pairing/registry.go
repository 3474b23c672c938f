package pairing

import "fmt"

// Registry is the symmetric mapping between currently paired clients: if it
// maps A to B, it also maps B to A.
type Registry struct {
	partner map[string]string
}

// NewRegistry creates an empty pair registry.
func NewRegistry() *Registry {
	return &Registry{partner: make(map[string]string)}
}

// Bind installs the pairing a<->b. Both sides must be unbound and distinct;
// a call violating that indicates a bug in the caller and is refused.
func (r *Registry) Bind(a, b string) error {
	if a == b {
		return fmt.Errorf("pairing: cannot bind %s to itself", a)
	}
	if p, ok := r.partner[a]; ok {
		return fmt.Errorf("pairing: %s is already bound to %s", a, p)
	}
	if p, ok := r.partner[b]; ok {
		return fmt.Errorf("pairing: %s is already bound to %s", b, p)
	}
	r.partner[a] = b
	r.partner[b] = a
	return nil
}

// PartnerOf returns the partner bound to id, if any.
func (r *Registry) PartnerOf(id string) (string, bool) {
	p, ok := r.partner[id]
	return p, ok
}

// Unbind removes both sides of id's pairing. Idempotent; returns the former
// partner when a binding existed.
func (r *Registry) Unbind(id string) (string, bool) {
	p, ok := r.partner[id]
	if !ok {
		return "", false
	}
	delete(r.partner, id)
	delete(r.partner, p)
	return p, true
}

// Pairs returns the number of active pairs.
func (r *Registry) Pairs() int {
	return len(r.partner) / 2
}
