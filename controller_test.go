package livecomponent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

type hookController struct {
	*LiveController
	log *eventLog
}

func (h *hookController) BeforeUpdate(ctx context.Context, next *State) {
	h.log.add(h.Identifier() + " before")
}

func (h *hookController) AfterUpdate(ctx context.Context) {
	h.log.add(h.Identifier() + " after")
}

func (h *hookController) Connect(ctx context.Context) {
	h.log.add(h.Identifier() + " connect")
}

func (h *hookController) Disconnect(ctx context.Context) {
	h.log.add(h.Identifier() + " disconnect")
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.events
	l.events = nil
	return out
}

func hookRegistry(log *eventLog, names ...string) *Registry {
	reg := NewRegistry()
	for _, name := range names {
		reg.Register(name, func(lc *LiveController) Controller {
			return &hookController{LiveController: lc, log: log}
		})
	}
	return reg
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPropagateState_HookOrder(t *testing.T) {
	log := &eventLog{}
	reg := hookRegistry(log, "Parent", "Child")
	body := TestMarkup("parent", "p1", nil, TestMarkup("child", "abc123", nil, ""))
	doc := startTest(t, reg, body, &MockTransport{})

	if got := log.take(); !equalStrings(got, []string{"parent connect", "child connect"}) {
		t.Errorf("connect events = %v", got)
	}

	next := NewTestState(Props{"parent_prop": "parent prop value"})
	next.Children.Set("abc123", NewTestState(Props{"child_prop": "child prop value"}))

	parent := doc.ComponentByID("p1").CurrentController().Live()
	if err := parent.PropagateState(testContext(t), next); err != nil {
		t.Fatalf("PropagateState() error = %v", err)
	}

	want := []string{"parent before", "child before", "child after", "parent after"}
	if got := log.take(); !equalStrings(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	child := doc.ComponentByID("abc123").CurrentController().Live()
	if child.Props()["child_prop"] != "child prop value" {
		t.Errorf("child props = %v", child.Props())
	}
	if parent.Props()["parent_prop"] != "parent prop value" {
		t.Errorf("parent props = %v", parent.Props())
	}
}

func TestPropagateState_FromMountAttribute(t *testing.T) {
	state := NewTestState(Props{"parent_prop": "parent prop value"})
	child := NewTestState(Props{"child_prop": "child prop value"})
	state.Children.Set("abc123", child)

	body := TestMarkup("", "p1", state, TestMarkup("", "abc123", nil, ""))
	doc := startTest(t, nil, body, &MockTransport{})

	parent := doc.ComponentByID("p1").CurrentController().Live()
	got, ok := parent.State().Children.Get("abc123")
	if !ok || got.Props["child_prop"] != "child prop value" {
		t.Errorf("children[abc123] = %v, %v", got, ok)
	}
	childCtrl := doc.ComponentByID("abc123").CurrentController().Live()
	if childCtrl.Props()["child_prop"] != "child prop value" {
		t.Errorf("child props = %v", childCtrl.Props())
	}
}

func TestPropagateState_SlotsByPosition(t *testing.T) {
	body := TestMarkup("", "list", nil,
		`<ul>`+
			`<li data-livecomponent data-id="i1" data-slot-name="item"></li>`+
			`<li data-slot-name="item">plain content</li>`+
			`<li data-livecomponent data-id="i3" data-slot-name="item"></li>`+
			`<li data-livecomponent data-id="other" data-slot-name="footer"></li>`+
			`</ul>`)
	doc := startTest(t, nil, body, &MockTransport{})

	next := NewState()
	NewBuilder(next).
		With("item", Props{"n": 1}, nil).
		With("item", Props{"n": 2}, nil).
		With("item", Props{"n": 3}, nil).
		With("item", Props{"n": 4}, nil)

	list := doc.ComponentByID("list").CurrentController().Live()
	if err := list.PropagateState(testContext(t), next); err != nil {
		t.Fatalf("PropagateState() error = %v", err)
	}

	if got := doc.ComponentByID("i1").CurrentController().Live().Props()["n"]; got != 1 {
		t.Errorf("i1 n = %v, want 1", got)
	}
	if got := doc.ComponentByID("i3").CurrentController().Live().Props()["n"]; got != 3 {
		t.Errorf("i3 n = %v, want 3", got)
	}
	if got := doc.ComponentByID("other").CurrentController().Live().Props(); len(got) != 0 {
		t.Errorf("footer slot should be untouched, got %v", got)
	}
}

func TestPropagateState_CapturesByValue(t *testing.T) {
	doc := startTest(t, nil, TestMarkup("", "c1", nil, ""), &MockTransport{})
	ctrl := doc.ComponentByID("c1").CurrentController().Live()

	state := NewTestState(Props{"foo": "bar"})
	if err := ctrl.PropagateState(testContext(t), state); err != nil {
		t.Fatal(err)
	}
	state.Props["foo"] = "baz"
	if ctrl.Props()["foo"] != "bar" {
		t.Errorf("props[foo] = %v, want bar", ctrl.Props()["foo"])
	}

	if err := ctrl.PropagateState(testContext(t), state); err != nil {
		t.Fatal(err)
	}
	if ctrl.Props()["foo"] != "baz" {
		t.Errorf("props[foo] = %v, want baz", ctrl.Props()["foo"])
	}
}

func TestPropagateState_ResolvesFunctionReferences(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Saver", func(lc *LiveController) Controller {
		lc.Method("save", func(ctx context.Context, args ...any) (any, error) {
			return "saved " + args[0].(string), nil
		})
		return lc
	})

	source := NewTestState(Props{"onSave": PropRef{ComponentID: "target", Method: "save"}})
	body := TestMarkup("", "source", source, "") + TestMarkup("saver", "target", nil, "")
	doc := startTest(t, reg, body, &MockTransport{})

	ctrl := doc.ComponentByID("source").CurrentController().Live()
	bound, ok := ctrl.Props()["onSave"].(*BoundMethod)
	if !ok {
		t.Fatalf("onSave = %#v, want *BoundMethod", ctrl.Props()["onSave"])
	}
	if bound.Target() != doc.ComponentByID("target").CurrentController().Live() {
		t.Error("bound to the wrong controller")
	}

	got, err := bound.Call(testContext(t), "draft")
	if err != nil || got != "saved draft" {
		t.Errorf("Call() = %v, %v", got, err)
	}

	data, err := json.Marshal(ctrl.State())
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) || !strings.Contains(string(data), `"onSave":"fn:target#save"`) {
		t.Errorf("bound method should serialize as its reference, got %s", data)
	}

	missing := &BoundMethod{Ref: PropRef{ComponentID: "target", Method: "nope"}, target: bound.Target()}
	if _, err := missing.Call(testContext(t)); !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("Call(nope) error = %v, want ErrMethodNotFound", err)
	}
}

func TestPropagateState_MissingReferenceFails(t *testing.T) {
	doc := startTest(t, nil, TestMarkup("", "c1", NewTestState(Props{"keep": true}), ""), &MockTransport{})
	ctrl := doc.ComponentByID("c1").CurrentController().Live()

	next := NewTestState(Props{"cb": PropRef{ComponentID: "missing", Method: "x"}})
	err := ctrl.PropagateState(testContext(t), next)
	if !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("PropagateState() error = %v, want ErrComponentNotFound", err)
	}
	if ctrl.Props()["keep"] != true {
		t.Error("a failed propagation must not replace the state")
	}
}

func TestLiveController_FindChild(t *testing.T) {
	doc := startTest(t, nil, TestMarkup("", "c1", nil, ""), &MockTransport{})
	ctrl := doc.ComponentByID("c1").CurrentController().Live()

	child := NewTestState(Props{"name": "child"})
	next := NewState()
	next.Children.Set("abc123", child)
	if err := ctrl.PropagateState(testContext(t), next); err != nil {
		t.Fatal(err)
	}

	id, got, ok := ctrl.FindChild(func(s *State) bool { return s.Props["name"] == "child" })
	if !ok || id != "abc123" || got.Props["name"] != "child" {
		t.Errorf("FindChild() = %q, %v, %v", id, got, ok)
	}
	if _, _, ok := ctrl.FindChild(func(s *State) bool { return false }); ok {
		t.Error("FindChild() should return no match")
	}

	byID, ok := ctrl.FindChildByID("abc123")
	if !ok || byID.Props["name"] != "child" {
		t.Errorf("FindChildByID() = %v, %v", byID, ok)
	}
}

func TestLiveController_RenderWithBuilder(t *testing.T) {
	mock := &MockTransport{RenderFunc: echoRender("c1", "<p>rendered</p>")}
	doc := startTest(t, nil, TestMarkup("", "c1", NewTestState(Props{"title": "old"}), ""), mock)
	ctrl := doc.ComponentByID("c1").CurrentController().Live()

	err := ctrl.Render(testContext(t), func(b *Builder) {
		b.Props()["title"] = "new"
		b.With("item", Props{"label": "milk"}, nil)
		b.Call("add", Props{"label": "milk"})
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.State.Props["title"] != "new" || len(req.State.Slots["item"]) != 1 {
		t.Errorf("request state = %+v", req.State)
	}
	if len(req.Reflexes) != 1 || req.Reflexes[0].MethodName != "add" {
		t.Errorf("reflexes = %+v", req.Reflexes)
	}
	if ctrl.Props()["title"] != "new" {
		t.Errorf("state after render = %v", ctrl.Props())
	}
	if !strings.Contains(doc.HTML(), "<p>rendered</p>") {
		t.Error("DOM not updated")
	}
}

func TestLiveController_RendersAreSerialized(t *testing.T) {
	mock := &MockTransport{RenderFunc: echoRender("c1", "")}
	doc := startTest(t, nil, TestMarkup("", "c1", NewTestState(Props{"count": float64(0)}), ""), mock)
	ctrl := doc.ComponentByID("c1").CurrentController().Live()
	ctx := testContext(t)

	increment := func(b *Builder) {
		b.Props()["count"] = b.Props()["count"].(float64) + 1
	}
	first := ctrl.RenderAsync(ctx, increment)
	second := ctrl.RenderAsync(ctx, increment)

	if _, err := first.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := second.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	// The second render starts from the state the first one produced.
	if got := ctrl.Props()["count"]; got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}
}

func TestLiveController_FindClosest(t *testing.T) {
	body := TestMarkup("outer", "o1", nil, `<div class="gap">`+TestMarkup("inner", "i1", nil, "")+`</div>`)
	doc := startTest(t, nil, body, &MockTransport{})

	inner := doc.ComponentByID("i1").CurrentController().Live()
	outer := doc.ComponentByID("o1").CurrentController()

	if got := inner.FindClosest("outer", nil); got != outer {
		t.Errorf("FindClosest(outer) = %v", got)
	}
	if got := inner.FindClosest("inner", nil); got.Live() != inner {
		t.Error("FindClosest should include the start element")
	}
	if got := inner.FindClosest("nope", nil); got != nil {
		t.Errorf("FindClosest(nope) = %v, want nil", got)
	}
	if got := doc.ControllerFor(doc.ComponentByID("o1").Element(), "outer"); got != outer {
		t.Errorf("ControllerFor() = %v", got)
	}
}

func TestLiveController_TargetComponent(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Todo::List", func(lc *LiveController) Controller { return lc }, WithTargets("editor", "missing"))

	body := TestMarkup("todo-list", "list", nil,
		TestMarkup("editor", "e1", nil,
			`<div data-livecomponent data-id="wrap" data-controller="livereact">`+
				`<span data-todo-list-target="editor other"></span>`+
				`</div>`))
	doc := startTest(t, reg, body, &MockTransport{})

	list := doc.ComponentByID("list").CurrentController().Live()
	editor := doc.ComponentByID("e1").CurrentController()

	if got := list.TargetComponent("editor"); got != editor {
		t.Errorf("TargetComponent(editor) = %v, want the editor controller", got)
	}
	if got := list.TargetComponent("missing"); got != nil {
		t.Errorf("TargetComponent(missing) = %v, want nil", got)
	}
	if got := list.TargetComponent("undeclared"); got != nil {
		t.Errorf("TargetComponent(undeclared) = %v, want nil", got)
	}
}

func TestDocument_UnmountRunsDisconnect(t *testing.T) {
	log := &eventLog{}
	reg := hookRegistry(log, "Parent", "Child")
	body := TestMarkup("parent", "p1", nil, TestMarkup("child", "c1", nil, ""))

	mock := &MockTransport{RenderFunc: func(req *RenderRequest) (string, error) {
		return TestResponse("parent", "p1", req.State, "<p>no children</p>"), nil
	}}
	doc := startTest(t, reg, body, mock)
	log.take()

	parent := doc.ComponentByID("p1").CurrentController().Live()
	if err := parent.Render(testContext(t), nil); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	events := log.take()
	if len(events) == 0 || events[0] != "child disconnect" {
		t.Errorf("events = %v, want child disconnect first", events)
	}
	if doc.ComponentByID("c1") != nil {
		t.Error("removed child should be unmounted")
	}
	if len(doc.Components()) != 1 {
		t.Errorf("components = %d, want 1", len(doc.Components()))
	}
}
