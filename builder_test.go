package livecomponent

import (
	"encoding/json"
	"testing"
)

func TestBuilder_WithDefaults(t *testing.T) {
	state := NewState()
	NewBuilder(state).With("item", nil, nil)

	items := state.Slots["item"]
	if len(items) != 1 {
		t.Fatalf("len(slots[item]) = %d, want 1", len(items))
	}
	item := items[0]
	if len(item.Props) != 0 || item.Props == nil {
		t.Errorf("props = %#v, want empty map", item.Props)
	}
	if len(item.Slots) != 0 || item.Slots == nil {
		t.Errorf("slots = %#v, want empty map", item.Slots)
	}
	if item.Children.Len() != 0 {
		t.Errorf("children = %v, want empty", item.Children.Keys())
	}
	if item.Content != "" {
		t.Errorf("content = %q, want unset", item.Content)
	}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if got, want := string(data), `{"props":{},"slots":{},"children":{}}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}

func TestBuilder_WithPropsAndBlock(t *testing.T) {
	state := NewState()
	NewBuilder(state).With("item", Props{"foo": "bar"}, func(b *Builder) string {
		return "content"
	})

	item := state.Slots["item"][0]
	if item.Props["foo"] != "bar" {
		t.Errorf("props = %v, want foo=bar", item.Props)
	}
	if item.Content != "content" {
		t.Errorf("content = %q, want %q", item.Content, "content")
	}
}

func TestBuilder_NestedBlocksAndOrder(t *testing.T) {
	state := NewState()
	b := NewBuilder(state)
	b.With("row", Props{"n": 1}, nil).
		WithBlock("row", func(row *Builder) string {
			row.With("cell", Props{"v": "a"}, nil)
			row.Props()["n"] = 2
			return ""
		})

	rows := state.Slots["row"]
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Props["n"] != 1 || rows[1].Props["n"] != 2 {
		t.Errorf("rows out of order: %v, %v", rows[0].Props, rows[1].Props)
	}
	if len(rows[1].Slots["cell"]) != 1 {
		t.Errorf("nested slot missing: %v", rows[1].Slots)
	}
	if rows[1].Content != "" {
		t.Errorf("empty block result should leave content unset, got %q", rows[1].Content)
	}
}

func TestBuilder_Call(t *testing.T) {
	b := NewBuilder(NewState())
	b.Call("m", Props{"foo": "bar"})

	reflexes := b.Reflexes()
	if len(reflexes) != 1 {
		t.Fatalf("len(reflexes) = %d, want 1", len(reflexes))
	}
	if reflexes[0].MethodName != "m" || reflexes[0].Props["foo"] != "bar" {
		t.Errorf("reflex = %+v", reflexes[0])
	}

	b.Call("m", nil)
	if got := b.Reflexes()[1].Props; got == nil || len(got) != 0 {
		t.Errorf("default props = %#v, want empty map", got)
	}
}

func TestBuilder_PropsWriteThrough(t *testing.T) {
	state := NewTestState(Props{"title": "old"})
	b := NewBuilder(state)
	b.Props()["title"] = "new"

	if state.Props["title"] != "new" {
		t.Errorf("state.Props[title] = %v, want new", state.Props["title"])
	}
}

func TestBuilder_Request(t *testing.T) {
	b := NewBuilder(NewTestState(Props{"a": 1}))
	b.Call("first", nil).Call("second", nil)

	req := b.Request()
	if req.State != b.State() {
		t.Error("request should carry the builder state")
	}
	if len(req.Reflexes) != 2 || req.Reflexes[0].MethodName != "first" || req.Reflexes[1].MethodName != "second" {
		t.Errorf("reflexes = %+v", req.Reflexes)
	}

	data, err := json.Marshal(NewBuilder(nil).Request())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if got, want := string(data), `{"state":{"props":{},"slots":{},"children":{}},"reflexes":[]}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}
