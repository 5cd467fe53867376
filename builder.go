package livecomponent

// Block fills in a nested slot entry. A non-empty return value becomes the
// entry's content.
type Block func(b *Builder) string

// Builder stages changes to a state before it is sent as a render request:
// prop edits, slot entries and reflex calls.
//
//	err := c.Render(ctx, func(b *livecomponent.Builder) {
//	    b.Props()["title"] = "Groceries"
//	    b.With("item", livecomponent.Props{"label": "milk"}, nil)
//	    b.Call("save", nil)
//	})
type Builder struct {
	state    *State
	reflexes []Reflex
}

// NewBuilder wraps state. The builder mutates state in place.
func NewBuilder(state *State) *Builder {
	if state == nil {
		state = NewState()
	}
	state.normalize()
	return &Builder{state: state}
}

// With appends a new entry to the named slot, creating the slot on first use.
// Nil props default to an empty map. A non-nil block receives a builder for
// the new entry.
func (b *Builder) With(slot string, props Props, block Block) *Builder {
	if props == nil {
		props = Props{}
	}
	entry := NewState()
	entry.Props = props

	if block != nil {
		if content := block(NewBuilder(entry)); content != "" {
			entry.Content = content
		}
	}

	b.state.Slots[slot] = append(b.state.Slots[slot], entry)
	return b
}

// WithBlock appends a slot entry with empty props, filled in by block.
func (b *Builder) WithBlock(slot string, block Block) *Builder {
	return b.With(slot, nil, block)
}

// Call appends a reflex. Nil props default to an empty map.
func (b *Builder) Call(method string, props Props) *Builder {
	if props == nil {
		props = Props{}
	}
	b.reflexes = append(b.reflexes, Reflex{MethodName: method, Props: props})
	return b
}

// Props returns the state's top-level props. Writes go straight into the
// wrapped state.
func (b *Builder) Props() Props {
	return b.state.Props
}

// State returns the wrapped state.
func (b *Builder) State() *State {
	return b.state
}

// Reflexes returns the staged reflex calls in call order.
func (b *Builder) Reflexes() []Reflex {
	return b.reflexes
}

// Request assembles the render request.
func (b *Builder) Request() *RenderRequest {
	reflexes := make([]Reflex, len(b.reflexes))
	copy(reflexes, b.reflexes)
	return &RenderRequest{State: b.state, Reflexes: reflexes}
}
