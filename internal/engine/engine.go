// Package engine hosts the inference backends.  The reconstruction
// driver only ever talks to the Network interface: fixed-size
// single-channel blocks in, fixed-size blocks out, one call per batch.
package engine

import (
	"fmt"
	"strings"

	"github.com/AnyUserName/upres/internal/geometry"
	"github.com/AnyUserName/upres/internal/model"
)

// Network is one loaded model bound to a backend.  Infer runs a batch
// of n input blocks (packed side by side in src) and writes n output
// blocks into dst.  n may be smaller than the capacity the network was
// loaded with; it must never exceed it.  A failed call writes nothing
// usable into dst and the network stays usable.
type Network interface {
	Infer(dst, src []float32, n int) error
	InputSize() int
	OutputSize() int
}

// Backend constructs Networks.  Availability is probed once per
// process and memoized.
type Backend interface {
	Name() string
	Available() bool
	Load(m *model.Model, par geometry.Params, batchCapacity int) (Network, error)
}

// Registry holds the probed backends.
type Registry struct {
	backends map[string]Backend
}

// cpuBackends are the compiled-in backend instances.  They live at
// package level so each one's availability probe runs once per
// process, no matter how many registries are built.
var cpuBackends = []Backend{&serialBackend{}, newParallelBackend()}

// NewRegistry checks every compiled-in backend and keeps the available
// ones.
func NewRegistry() *Registry {
	r := &Registry{backends: make(map[string]Backend)}
	for _, b := range cpuBackends {
		if b.Available() {
			r.backends[b.Name()] = b
		}
	}
	return r
}

// Get resolves a backend by name; "auto" (or empty) picks the fastest
// available one.
func (r *Registry) Get(name string) (Backend, error) {
	name = strings.ToLower(name)
	if name == "" || name == "auto" {
		for _, n := range []string{"parallel", "serial"} {
			if b, ok := r.backends[n]; ok {
				return b, nil
			}
		}
		return nil, fmt.Errorf("no inference backend available")
	}
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown inference backend %q (have: %s)", name, strings.Join(r.Available(), ", "))
	}
	return b, nil
}

// Available lists probed backend names in preference order.
func (r *Registry) Available() []string {
	var out []string
	for _, n := range []string{"parallel", "serial"} {
		if _, ok := r.backends[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no backends available"
	}
	return fmt.Sprintf("backends: %s", strings.Join(avail, ", "))
}
