package livecomponent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const propRefPrefix = "fn:"

// PropRef is a function-valued prop as it travels on the wire: a reference to
// a method on another mounted component, encoded as "fn:<componentId>#<method>".
//
// PropRef values only exist between decoding and propagation. Propagating a
// state into a controller replaces every PropRef with a *BoundMethod.
type PropRef struct {
	ComponentID string
	Method      string
}

// ParsePropRef parses the "fn:<componentId>#<method>" sentinel. Both parts
// must be non-empty.
func ParsePropRef(s string) (PropRef, bool) {
	rest, ok := strings.CutPrefix(s, propRefPrefix)
	if !ok {
		return PropRef{}, false
	}
	id, method, ok := strings.Cut(rest, "#")
	if !ok || id == "" || method == "" {
		return PropRef{}, false
	}
	return PropRef{ComponentID: id, Method: method}, true
}

// IsZero returns true if the reference is empty/unset.
func (r PropRef) IsZero() bool {
	return r.ComponentID == "" && r.Method == ""
}

// String returns the wire sentinel.
func (r PropRef) String() string {
	return propRefPrefix + r.ComponentID + "#" + r.Method
}

// MarshalJSON encodes the reference as its wire sentinel.
func (r PropRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Method is a callable registered on a controller with LiveController.Method.
// Function-valued props resolve to methods of this shape.
type Method func(ctx context.Context, args ...any) (any, error)

// BoundMethod is a resolved function-valued prop. Calling it dispatches the
// referenced method on the controller of the referenced component.
//
//	if save, ok := c.Props()["onSave"].(*livecomponent.BoundMethod); ok {
//	    _, err := save.Call(ctx, item)
//	}
type BoundMethod struct {
	Ref    PropRef
	target *LiveController
}

// Call invokes the referenced method.
func (b *BoundMethod) Call(ctx context.Context, args ...any) (any, error) {
	if b == nil || b.target == nil {
		return nil, fmt.Errorf("%w: unbound method", ErrMethodNotFound)
	}
	return b.target.Invoke(ctx, b.Ref.Method, args...)
}

// Target returns the controller the method is bound to.
func (b *BoundMethod) Target() *LiveController {
	return b.target
}

// MarshalJSON encodes the method back into its wire sentinel so a later render
// request still carries the reference.
func (b *BoundMethod) MarshalJSON() ([]byte, error) {
	return b.Ref.MarshalJSON()
}

// propRefOf reports whether v is a function-valued prop in either form.
func propRefOf(v any) (PropRef, bool) {
	switch t := v.(type) {
	case PropRef:
		return t, true
	case *BoundMethod:
		if t == nil {
			return PropRef{}, false
		}
		return t.Ref, true
	default:
		return PropRef{}, false
	}
}
