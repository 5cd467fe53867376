package livecomponent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/livecomponent/livecomponent/lib/dom"
)

// EventType names a form submission lifecycle event.
type EventType string

const (
	// EventSubmitStart fires before a form submission is sent. Listeners may
	// add fields to SubmitEvent.Body.
	EventSubmitStart EventType = "submit-start"

	// EventSubmitEnd fires once the response of a form submission was read.
	EventSubmitEnd EventType = "submit-end"
)

// SubmitEvent describes one form submission.
type SubmitEvent struct {
	Type EventType
	Form *html.Node

	// Body holds the outgoing form fields.
	Body url.Values

	// StatusCode and ResponseHTML are set for EventSubmitEnd.
	StatusCode   int
	ResponseHTML string
}

// Listener handles a submission event. Listeners run in registration order
// and must not hold on to the event after returning.
type Listener func(ctx context.Context, ev *SubmitEvent) error

// AddEventListener registers l for events of type t.
func (d *Document) AddEventListener(t EventType, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[t] = append(d.listeners[t], l)
}

func (d *Document) dispatch(ctx context.Context, ev *SubmitEvent) error {
	d.mu.Lock()
	listeners := append([]Listener(nil), d.listeners[ev.Type]...)
	d.mu.Unlock()

	var errs []error
	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SubmitForm submits form the way a browser would: its fields are collected,
// EventSubmitStart fires, the request is sent to the form's action and
// EventSubmitEnd fires with the response. GET forms send their fields in the
// query string; every other method posts them url-encoded.
func (d *Document) SubmitForm(ctx context.Context, form *html.Node) (*SubmitEvent, error) {
	d.mu.Lock()
	if !dom.Contains(d.root, form) {
		d.mu.Unlock()
		return nil, errors.New("livecomponent: form is not part of the document")
	}
	action := dom.AttrOr(form, "action", "")
	method := strings.ToUpper(dom.AttrOr(form, "method", http.MethodPost))
	body := formValues(form)
	d.mu.Unlock()

	ev := &SubmitEvent{Type: EventSubmitStart, Form: form, Body: body}
	if err := d.dispatch(ctx, ev); err != nil {
		return nil, err
	}

	target, err := d.resolveURL(action)
	if err != nil {
		return nil, fmt.Errorf("livecomponent: form action %q: %w", action, err)
	}

	var req *http.Request
	if method == http.MethodGet {
		u, _ := url.Parse(target)
		u.RawQuery = ev.Body.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, strings.NewReader(ev.Body.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("livecomponent: form request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}
	d.logger.Debug("form submitted", "action", target, "method", method, "status", resp.StatusCode)

	end := &SubmitEvent{
		Type:         EventSubmitEnd,
		Form:         form,
		Body:         ev.Body,
		StatusCode:   resp.StatusCode,
		ResponseHTML: string(data),
	}
	return end, d.dispatch(ctx, end)
}

// formValues collects the successful controls of form.
func formValues(form *html.Node) url.Values {
	values := url.Values{}
	named := dom.And(dom.WithAttr("name"), dom.Not(dom.WithAttr("disabled")))

	for _, el := range dom.FindAll(form, named) {
		name := dom.AttrOr(el, "name", "")
		switch el.Data {
		case "input":
			switch strings.ToLower(dom.AttrOr(el, "type", "text")) {
			case "submit", "button", "reset", "image", "file":
			case "checkbox", "radio":
				if dom.HasAttr(el, "checked") {
					values.Add(name, dom.AttrOr(el, "value", "on"))
				}
			default:
				values.Add(name, dom.AttrOr(el, "value", ""))
			}
		case "textarea":
			values.Add(name, dom.Text(el))
		case "select":
			if v, ok := selectedOption(el); ok {
				values.Add(name, v)
			}
		}
	}
	return values
}

func selectedOption(sel *html.Node) (string, bool) {
	options := dom.FindAll(sel, dom.WithTag("option"))
	if len(options) == 0 {
		return "", false
	}
	chosen := options[0]
	for _, opt := range options {
		if dom.HasAttr(opt, "selected") {
			chosen = opt
			break
		}
	}
	if v, ok := dom.Attr(chosen, "value"); ok {
		return v, true
	}
	return strings.TrimSpace(dom.Text(chosen)), true
}
