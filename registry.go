package livecomponent

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// DefaultIdentifier is the identifier of the built-in controller class. Any
// component whose identifier is not registered is attached to it.
const DefaultIdentifier = "live"

// TargetAccessor returns the controller of a named target component, or nil.
type TargetAccessor func(lc *LiveController) Controller

// Class is a registered controller class.
type Class struct {
	// Name is the name the class was registered under, e.g. "Todo::List".
	Name string

	// Identifier is the controller identifier derived from Name, e.g.
	// "todo-list". Elements select the class with data-controller.
	Identifier string

	// Tag is the custom element tag defined for the class.
	Tag string

	factory Factory
	targets map[string]TargetAccessor
}

// ClassOption configures a class at registration time.
type ClassOption func(*Class)

// WithTargets declares named targets. For each name an accessor is generated
// and stored on the class; LiveController.TargetComponent(name) calls it.
//
// An accessor finds the first descendant marked
// data-<identifier>-target="<name>", then returns the controller of the
// nearest enclosing live component that is not a data-controller="livereact"
// pass-through wrapper.
func WithTargets(names ...string) ClassOption {
	return func(c *Class) {
		for _, name := range names {
			c.targets[name] = targetAccessor(c.Identifier, name)
		}
	}
}

func targetAccessor(identifier, name string) TargetAccessor {
	attr := "data-" + identifier + "-target"
	return func(lc *LiveController) Controller {
		if lc == nil || lc.component == nil {
			return nil
		}
		return lc.component.doc.targetController(lc.component.el, attr, name)
	}
}

// Targets returns the declared target names in lexical order.
func (c *Class) Targets() []string {
	return slices.Sorted(maps.Keys(c.targets))
}

// Registry maps controller identifiers to classes and tracks which custom
// element tags have been defined.
type Registry struct {
	mu       sync.RWMutex
	classes  map[string]*Class
	elements map[string]string // tag -> identifier
}

// NewRegistry creates a registry holding only the default "Live" class.
func NewRegistry() *Registry {
	r := &Registry{
		classes:  make(map[string]*Class),
		elements: make(map[string]string),
	}
	r.Register("Live", defaultFactory)
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Register.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a class to the default registry.
func Register(name string, factory Factory, opts ...ClassOption) *Class {
	return defaultRegistry.Register(name, factory, opts...)
}

// Register adds a controller class under name.
//
// The identifier is name lowercased with "::" and "/" turned into hyphens. A
// single bare identifier gets the custom element tag "lc-<identifier>",
// anything else uses the identifier itself. Defining a tag that already exists
// is a no-op, so registering the same name twice replaces the factory and
// keeps the element.
//
// Panics if name is empty or factory is nil.
func (r *Registry) Register(name string, factory Factory, opts ...ClassOption) *Class {
	if name == "" {
		panic("livecomponent: class name is required")
	}
	if factory == nil {
		panic(fmt.Sprintf("livecomponent: nil factory for %q", name))
	}

	identifier := Identifier(name)
	class := &Class{
		Name:       name,
		Identifier: identifier,
		Tag:        ElementTag(identifier),
		factory:    factory,
		targets:    make(map[string]TargetAccessor),
	}
	for _, opt := range opts {
		opt(class)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, defined := r.elements[class.Tag]; !defined {
		r.elements[class.Tag] = identifier
	}
	r.classes[identifier] = class
	return class
}

// Lookup returns the class registered under identifier.
func (r *Registry) Lookup(identifier string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[identifier]
	return c, ok
}

// LookupTag returns the class whose custom element tag is tag.
func (r *Registry) LookupTag(tag string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identifier, ok := r.elements[tag]
	if !ok {
		return nil, false
	}
	c, ok := r.classes[identifier]
	return c, ok
}

// IsDefined reports whether a custom element tag has been defined.
func (r *Registry) IsDefined(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.elements[tag]
	return ok
}

// Identifiers returns the registered identifiers in lexical order.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.classes))
}

// resolve picks the class for an element: the first registered token of
// data-controller, then the class owning the element's tag, then the default.
func (r *Registry) resolve(controllerAttr, tag string) *Class {
	for _, token := range strings.Fields(controllerAttr) {
		if c, ok := r.Lookup(token); ok {
			return c
		}
	}
	if c, ok := r.LookupTag(tag); ok {
		return c
	}
	if c, ok := r.Lookup(DefaultIdentifier); ok {
		return c
	}
	return &Class{
		Name:       "Live",
		Identifier: DefaultIdentifier,
		Tag:        ElementTag(DefaultIdentifier),
		factory:    defaultFactory,
		targets:    map[string]TargetAccessor{},
	}
}

var identifierReplacer = strings.NewReplacer("::", "-", "/", "-")

// Identifier derives a controller identifier from a class name.
func Identifier(name string) string {
	return strings.ToLower(identifierReplacer.Replace(name))
}

// ElementTag derives the custom element tag for an identifier.
func ElementTag(identifier string) string {
	if strings.Contains(identifier, "-") {
		return identifier
	}
	return "lc-" + identifier
}

func defaultFactory(lc *LiveController) Controller {
	return lc
}
