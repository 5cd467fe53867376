package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livecomponent/livecomponent"
)

const counterTemplate = `<div data-livecomponent data-id="{{.Props.id}}" data-state="{{stateJSON .State}}"><h1>{{.Props.title}}</h1></div>`

func writeTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.html"), []byte(`<div data-livecomponent>default</div>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "todo-list.html"), []byte(counterTemplate), 0o644))
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "livecomponent version "+version+"\n", out)
}

func TestEncodeDecode(t *testing.T) {
	wire, err := execute(t, `{"state":{"props":{"a":1}}}`, "encode")
	require.NoError(t, err)

	text, err := execute(t, wire, "decode")
	require.NoError(t, err)
	assert.Equal(t, `{"state":{"props":{"a":1}}}`+"\n", text)

	pretty, err := execute(t, wire, "decode", "--request")
	require.NoError(t, err)
	assert.Contains(t, pretty, `"reflexes": []`)
	assert.Contains(t, pretty, `"a": 1`)

	plain, err := execute(t, "<p>hi</p>", "decode")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>\n", plain)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\ncodec: msgpack\nclient:\n  transport: ws\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, "ws", cfg.Client.Transport)
	assert.Equal(t, "templates", cfg.Templates, "unset fields keep their defaults")
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestTemplateRenderer(t *testing.T) {
	r, err := loadTemplates(writeTemplates(t))
	require.NoError(t, err)

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"by origin type", "Todo::List", "<h1>Groceries</h1>"},
		{"fallback", "Unknown", "default"},
		{"no origin type", "", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := livecomponent.NewTestState(livecomponent.Props{"id": "c1", "title": "Draft"})
			state.OriginType = tt.origin
			req := livecomponent.NewBuilder(state).Call("set", livecomponent.Props{"title": "Groceries"}).Request()

			c, err := r.Render(context.Background(), req)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, c.Render(context.Background(), &buf))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	_, err = loadTemplates(t.TempDir())
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	cfg := defaultConfig()
	cfg.Templates = writeTemplates(t)
	handler, err := newServeHandler(cfg, quietLogger(t))
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	state := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(state, []byte(`{"origin_type":"Todo::List","props":{"id":"c1","title":"Draft"}}`), 0o644))

	for _, transport := range []string{"http", "ws"} {
		t.Run(transport, func(t *testing.T) {
			out, err := execute(t, "", "render", "--log-level", "error",
				"--base-url", srv.URL, "--transport", transport,
				"--state", state, "--set", "title=Groceries")
			require.NoError(t, err)
			assert.Contains(t, out, "<template>")
			assert.Contains(t, out, "<h1>Groceries</h1>")
			assert.Contains(t, out, `data-id="c1"`)
		})
	}

	_, err = execute(t, "", "render", "--base-url", srv.URL, "--transport", "carrier-pigeon")
	assert.ErrorContains(t, err, "unknown transport")

	_, err = execute(t, "", "render", "--base-url", srv.URL, "--set", "novalue")
	assert.ErrorContains(t, err, "want key=value")
}
