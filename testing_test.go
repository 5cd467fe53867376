package livecomponent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/livecomponent/livecomponent/lib/dom"
)

func TestMockTransport(t *testing.T) {
	mock := &MockTransport{}
	if _, err := mock.Render(context.Background(), NewBuilder(nil).Request()); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport without RenderFunc, got %v", err)
	}

	mock.RenderFunc = echoRender("c1", "<p>ok</p>")
	req := NewBuilder(NewTestState(Props{"n": 1})).Call("bump", nil).Request()
	html, err := mock.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(html, "<template>") {
		t.Errorf("unexpected response: %s", html)
	}

	reqs := mock.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", len(reqs))
	}
	// Recorded requests went through the wire encoding.
	if reqs[1].State.Props["n"] != float64(1) || reqs[1].Reflexes[0].MethodName != "bump" {
		t.Errorf("unexpected recorded request: %+v", reqs[1])
	}
	if reqs[1] == req {
		t.Error("recorded request should be a decoded copy")
	}
}

func TestTestMarkup(t *testing.T) {
	state := NewTestState(Props{"title": `"quoted" & <tagged>`})
	markup := TestMarkup("todo-list", "c1", state, "<span>x</span>")

	container, err := dom.ParseFragment(markup)
	if err != nil {
		t.Fatal(err)
	}
	root := dom.FirstElementChild(container)
	if root == nil {
		t.Fatal("no root element")
	}

	tests := []struct {
		attr string
		want string
	}{
		{AttrID, "c1"},
		{AttrController, "todo-list"},
		{AttrComponent, "todo-list"},
	}
	for _, tt := range tests {
		if got := dom.AttrOr(root, tt.attr, ""); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.attr, got, tt.want)
		}
	}

	raw, _ := dom.Attr(root, AttrState)
	parsed, err := ParseState([]byte(raw))
	if err != nil {
		t.Fatalf("data-state does not parse: %v", err)
	}
	if parsed.Props["title"] != `"quoted" & <tagged>` {
		t.Errorf("title = %v", parsed.Props["title"])
	}

	bare := TestMarkup("", "c2", nil, "")
	if strings.Contains(bare, AttrState) || strings.Contains(bare, AttrController) {
		t.Errorf("unexpected attributes: %s", bare)
	}
}

func TestNewTestDocument(t *testing.T) {
	doc, err := NewTestDocument(TestMarkup("", "c1", nil, ""))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc.HTML(), `data-id="c1"`) {
		t.Errorf("unexpected document: %s", doc.HTML())
	}
}
