package livecomponent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Props holds a component's JSON-compatible properties.
//
// String values of the form "fn:<componentId>#<method>" are decoded into
// PropRef values and, once the state is propagated into a controller, resolved
// into *BoundMethod values that can be called directly.
type Props map[string]any

// UnmarshalJSON decodes props, turning function-reference strings into PropRef.
func (p *Props) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			if ref, ok := ParsePropRef(s); ok {
				m[k] = ref
			}
		}
	}
	*p = m
	return nil
}

// State describes one component instance: its props, pre-rendered content,
// named slots and addressable children.
type State struct {
	// OriginType names the server-side component type. Opaque to the client.
	OriginType string `json:"origin_type,omitempty"`

	Props Props `json:"props"`

	// Content is pre-rendered inner HTML for default content.
	Content string `json:"content,omitempty"`

	// Slots are named, ordered regions of nested states.
	Slots map[string][]*State `json:"slots"`

	// Children are nested states keyed by component instance id.
	Children *ChildMap `json:"children"`
}

// NewState returns an empty state with all collections allocated.
func NewState() *State {
	return &State{
		Props:    Props{},
		Slots:    map[string][]*State{},
		Children: NewChildMap(),
	}
}

// UnmarshalJSON decodes a state and allocates any collection the input left
// out, so decoded states are always safe to walk.
func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = State(p)
	s.normalize()
	return nil
}

// MarshalJSON encodes a state with every collection present, so a state built
// by hand without NewState still has the wire shape.
func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	p := plain(s)
	if p.Props == nil {
		p.Props = Props{}
	}
	if p.Slots == nil {
		p.Slots = map[string][]*State{}
	}
	if p.Children == nil {
		p.Children = NewChildMap()
	}
	return json.Marshal(p)
}

func (s *State) normalize() {
	if s.Props == nil {
		s.Props = Props{}
	}
	if s.Slots == nil {
		s.Slots = map[string][]*State{}
	}
	if s.Children == nil {
		s.Children = NewChildMap()
	}
}

// Clone returns a deep copy of s. Bound methods are shared, everything else is
// copied.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		OriginType: s.OriginType,
		Content:    s.Content,
		Props:      cloneValue(map[string]any(s.Props)).(map[string]any),
		Slots:      make(map[string][]*State, len(s.Slots)),
		Children:   NewChildMap(),
	}
	if s.Props == nil {
		out.Props = Props{}
	}
	for name, entries := range s.Slots {
		cloned := make([]*State, len(entries))
		for i, e := range entries {
			cloned[i] = e.Clone()
		}
		out.Slots[name] = cloned
	}
	for id, child := range s.Children.All() {
		out.Children.Set(id, child.Clone())
	}
	return out
}

// SlotNames returns the slot names of s in lexical order.
func (s *State) SlotNames() []string {
	return slices.Sorted(maps.Keys(s.Slots))
}

// FindChild returns the first direct child, in insertion order, for which
// match returns true.
func (s *State) FindChild(match func(*State) bool) (string, *State, bool) {
	if s == nil {
		return "", nil, false
	}
	for id, child := range s.Children.All() {
		if match(child) {
			return id, child, true
		}
	}
	return "", nil, false
}

// FindChildByID searches the children of s depth-first for id.
func (s *State) FindChildByID(id string) (*State, bool) {
	if s == nil {
		return nil, false
	}
	if child, ok := s.Children.Get(id); ok {
		return child, true
	}
	for _, child := range s.Children.All() {
		if found, ok := child.FindChildByID(id); ok {
			return found, true
		}
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return map[string]any{}
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Props:
		return Props(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// ChildMap is a string-keyed map of child states that remembers insertion
// order, including across JSON round trips.
type ChildMap struct {
	keys  []string
	items map[string]*State
}

// NewChildMap returns an empty ChildMap.
func NewChildMap() *ChildMap {
	return &ChildMap{items: map[string]*State{}}
}

// Len returns the number of children.
func (m *ChildMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the child stored under id.
func (m *ChildMap) Get(id string) (*State, bool) {
	if m == nil {
		return nil, false
	}
	s, ok := m.items[id]
	return s, ok
}

// Set stores s under id. New ids are appended to the iteration order; existing
// ids keep their position.
func (m *ChildMap) Set(id string, s *State) {
	if _, ok := m.items[id]; !ok {
		m.keys = append(m.keys, id)
	}
	m.items[id] = s
}

// Delete removes id.
func (m *ChildMap) Delete(id string) {
	if _, ok := m.items[id]; !ok {
		return
	}
	delete(m.items, id)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == id })
}

// Keys returns the ids in insertion order.
func (m *ChildMap) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// All iterates children in insertion order.
func (m *ChildMap) All() iter.Seq2[string, *State] {
	return func(yield func(string, *State) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.items[k]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the children as a JSON object in insertion order.
func (m *ChildMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (m *ChildMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.items = map[string]*State{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("livecomponent: children must be an object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("livecomponent: invalid child key %v", tok)
		}
		child := NewState()
		if err := dec.Decode(child); err != nil {
			return err
		}
		m.Set(key, child)
	}

	_, err = dec.Token()
	return err
}

// Reflex is a named server-side method call carried alongside a render request.
type Reflex struct {
	MethodName string `json:"method_name"`
	Props      Props  `json:"props"`
}

// RenderRequest asks the server to apply Reflexes, in order, and render State.
type RenderRequest struct {
	State    *State   `json:"state"`
	Reflexes []Reflex `json:"reflexes"`
}

// MarshalJSON always emits reflexes as an array.
func (r RenderRequest) MarshalJSON() ([]byte, error) {
	type plain RenderRequest
	p := plain(r)
	if p.Reflexes == nil {
		p.Reflexes = []Reflex{}
	}
	return json.Marshal(p)
}

// ParseState decodes a JSON-encoded state.
func ParseState(data []byte) (*State, error) {
	s := NewState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("livecomponent: parse state: %w", err)
	}
	return s, nil
}
