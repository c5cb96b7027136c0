// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// DefaultHTTPInstance is the instance name used by RegisterHTTP when none is
// given.
const DefaultHTTPInstance = "http"

// Instance is a named target together with its exposed methods. The method
// list is fixed at registration.
type Instance struct {
	name    string
	target  any
	methods []*ExposedMethod
}

// Name is the instance name.
func (i *Instance) Name() string { return i.name }

// Target returns the registered object.
func (i *Instance) Target() any { return i.target }

// Methods returns the exposed methods in registration order.
func (i *Instance) Methods() []*ExposedMethod {
	return append([]*ExposedMethod(nil), i.methods...)
}

// Method resolves a method by public name.
func (i *Instance) Method(name string) (*ExposedMethod, error) {
	for _, m := range i.methods {
		if m.name == name {
			return m, nil
		}
	}
	return nil, &NotFoundError{Instance: i.name, Method: name}
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger sets the logger used while registering.
func WithBuilderLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// Builder collects instances during startup. Freeze turns it into a read-only
// Registry; the builder refuses registrations afterwards.
type Builder struct {
	mu        sync.Mutex
	instances []*Instance
	names     map[string]struct{}
	frozen    *Registry
	logger    *zap.Logger
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{names: make(map[string]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = componentLogger(b.logger, "registry")
	return b
}

// Register adds target under name. With methods, exactly those are exposed;
// otherwise they are discovered from the target's ExposeAll or Exposer
// markers. On error the builder is left unchanged.
func (b *Builder) Register(name string, target any, methods ...Method) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen != nil {
		return ErrFrozen
	}
	if _, exists := b.names[name]; exists {
		return &DuplicateNameError{Name: name}
	}

	var (
		exposed []*ExposedMethod
		err     error
	)
	if len(methods) > 0 {
		exposed, err = buildTable(name, methods)
	} else {
		exposed, err = discover(name, target)
	}
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(exposed))
	for _, m := range exposed {
		if _, dup := seen[m.name]; dup {
			return fmt.Errorf("instance %q method %q: %w", name, m.name, ErrDuplicateMethod)
		}
		seen[m.name] = struct{}{}
	}

	b.instances = append(b.instances, &Instance{name: name, target: target, methods: exposed})
	b.names[name] = struct{}{}
	b.logger.Debug("instance registered",
		zap.String("instance", name),
		zap.Int("methods", len(exposed)))
	return nil
}

func buildTable(instance string, methods []Method) ([]*ExposedMethod, error) {
	exposed := make([]*ExposedMethod, 0, len(methods))
	for _, m := range methods {
		if m.build == nil {
			return nil, &SignatureError{Instance: instance, Method: m.Name, Detail: "empty table entry"}
		}
		em, err := m.build()
		if err != nil {
			return nil, &SignatureError{Instance: instance, Method: m.Name, Detail: err.Error()}
		}
		exposed = append(exposed, em)
	}
	return exposed, nil
}

// RegisterHTTP registers the HTTP helper. An empty name selects
// DefaultHTTPInstance; a nil client selects a fresh client per request.
func (b *Builder) RegisterHTTP(name string, client *http.Client) error {
	if name == "" {
		name = DefaultHTTPInstance
	}
	return b.Register(name, NewHTTP(client))
}

// Freeze ends the registration phase and returns the registry. Calling it
// again returns the same registry.
func (b *Builder) Freeze() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen != nil {
		return b.frozen
	}
	r := &Registry{
		instances: append([]*Instance(nil), b.instances...),
		index:     make(map[string]*Instance, len(b.instances)),
	}
	for _, inst := range r.instances {
		r.index[inst.name] = inst
	}
	b.frozen = r
	b.logger.Info("registry frozen", zap.Int("instances", len(r.instances)))
	return r
}

// Registry is the frozen set of instances. It is safe for concurrent use.
type Registry struct {
	instances []*Instance
	index     map[string]*Instance
}

// Lookup resolves an instance by name.
func (r *Registry) Lookup(name string) (*Instance, error) {
	if inst, ok := r.index[name]; ok {
		return inst, nil
	}
	return nil, &NotFoundError{Instance: name}
}

// Instances returns the instances in registration order.
func (r *Registry) Instances() []*Instance {
	return append([]*Instance(nil), r.instances...)
}
