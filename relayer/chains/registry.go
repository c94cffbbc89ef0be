package chains

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "chains")

// ErrUnknownChain is returned on lookups for unregistered chain names.
var ErrUnknownChain = errors.New("unknown chain")

// Registry maps chain name -> handler. It is built once at startup and
// read-only afterwards, so lookups need no locking. Lookup is exact-case.
type Registry struct {
	handlers map[string]Handler
	order    []string
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its chain name. Duplicate names are an
// error; registration order is preserved for sweeps.
func (r *Registry) Register(handler Handler) error {
	name := handler.Name()
	if name == "" {
		return errors.New("handler has no chain name")
	}
	if _, exists := r.handlers[name]; exists {
		return errors.Errorf("handler already registered: %s", name)
	}
	r.handlers[name] = handler
	r.order = append(r.order, name)
	log.WithField("chainName", name).Info("Registered chain handler")
	return nil
}

// Get returns the handler registered under the exact chain name.
func (r *Registry) Get(name string) (Handler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownChain, name)
	}
	return handler, nil
}

// All returns the handlers in registration order.
func (r *Registry) All() []Handler {
	out := make([]Handler, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name])
	}
	return out
}
