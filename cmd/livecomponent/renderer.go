package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/a-h/templ"

	"github.com/livecomponent/livecomponent"
)

// templateRenderer renders requests with html/template files loaded from a
// directory. The template is picked by the state's origin type
// ("Todo::List" -> todo-list.html) and falls back to default.html. Templates
// are responsible for the whole live component root; stateJSON serializes the
// state for its data-state attribute:
//
//	<div data-livecomponent data-id="{{.Props.id}}" data-state="{{stateJSON .State}}">
//
// The reflex "set" merges its props into the state before rendering.
type templateRenderer struct {
	tmpl *template.Template
}

var templateFuncs = template.FuncMap{
	"stateJSON": func(s *livecomponent.State) (string, error) {
		data, err := json.Marshal(s)
		return string(data), err
	},
}

func loadTemplates(dir string) (*templateRenderer, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no *.html templates in %s", dir)
	}

	tmpl := template.New("").Funcs(templateFuncs)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if _, err := tmpl.New(filepath.Base(path)).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return &templateRenderer{tmpl: tmpl}, nil
}

type templateData struct {
	State    *livecomponent.State
	Props    livecomponent.Props
	Reflexes []livecomponent.Reflex
}

func (r *templateRenderer) Render(ctx context.Context, req *livecomponent.RenderRequest) (templ.Component, error) {
	state := req.State.Clone()
	for _, reflex := range req.Reflexes {
		if reflex.MethodName == "set" {
			for k, v := range reflex.Props {
				state.Props[k] = v
			}
		}
	}

	name := "default.html"
	if state.OriginType != "" {
		if candidate := livecomponent.Identifier(state.OriginType) + ".html"; r.tmpl.Lookup(candidate) != nil {
			name = candidate
		}
	}
	t := r.tmpl.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("%w: no template for %q", livecomponent.ErrComponentNotFound, state.OriginType)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, templateData{State: state, Props: state.Props, Reflexes: req.Reflexes}); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}
	return templ.Raw(buf.String()), nil
}
