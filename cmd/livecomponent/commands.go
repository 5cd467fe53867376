package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/livecomponent/livecomponent"
	"github.com/livecomponent/livecomponent/lib/cable"
	"github.com/livecomponent/livecomponent/lib/encoding"
	"github.com/livecomponent/livecomponent/server"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "livecomponent",
		Short:         "Tools for the live component render protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newEncodeCmd(),
		newDecodeCmd(),
		newRenderCmd(g),
		newServeCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "livecomponent version %s\n", version)
			},
		},
	)
	return root
}

// setup loads the config file and builds the logger.
func (g *globalFlags) setup() (Config, *slog.Logger, error) {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	logger, err := newLogger(cfg.LogLevel)
	return cfg, logger, err
}

// readInput reads the file named by args[0], or stdin when there is no
// argument or it is "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [file]",
		Short: "Compress and base64 encode text for the wire",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			wire, err := encoding.Encode(string(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wire)
			return nil
		},
	}
}

func newDecodeCmd() *cobra.Command {
	var asRequest bool
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a wire payload. Plain text is printed unchanged",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			wire := strings.TrimSpace(string(data))

			if !asRequest {
				text, err := encoding.Decode(wire)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}

			req, err := livecomponent.DecodeRequest(wire)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(req, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asRequest, "request", false, "parse the payload as a render request and pretty-print it")
	return cmd
}

type renderFlags struct {
	baseURL   string
	endpoint  string
	cablePath string
	transport string
	codec     string
	stateFile string
	calls     []string
	sets      []string
	timeout   time.Duration
}

func newRenderCmd(g *globalFlags) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Send a render request to a server and print the markup",
		Example: `  livecomponent render --state counter.json --call increment
  livecomponent render --transport ws --set title=Groceries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			f.applyDefaults(cmd, cfg.Client, cfg.Codec)

			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()
			return runRender(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), f, logger)
		},
	}
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "server base URL")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "HTTP render endpoint path")
	cmd.Flags().StringVar(&f.cablePath, "cable", "", "WebSocket channel path")
	cmd.Flags().StringVar(&f.transport, "transport", "", "transport to use (http or ws)")
	cmd.Flags().StringVar(&f.codec, "codec", "", "channel frame codec (json or msgpack)")
	cmd.Flags().StringVar(&f.stateFile, "state", "", "JSON state file, - for stdin")
	cmd.Flags().StringArrayVar(&f.calls, "call", nil, "reflex method to call, may be repeated")
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "key=value prop to set through the \"set\" reflex, may be repeated")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

// applyDefaults fills flags the user did not set from the config.
func (f *renderFlags) applyDefaults(cmd *cobra.Command, c ClientConfig, codec string) {
	set := func(name string, dst *string, v string) {
		if !cmd.Flags().Changed(name) && v != "" {
			*dst = v
		}
	}
	set("base-url", &f.baseURL, c.BaseURL)
	set("endpoint", &f.endpoint, c.Endpoint)
	set("cable", &f.cablePath, c.Cable)
	set("transport", &f.transport, c.Transport)
	set("codec", &f.codec, codec)
	if f.endpoint == "" {
		f.endpoint = livecomponent.DefaultEndpoint
	}
	if f.cablePath == "" {
		f.cablePath = server.DefaultCableEndpoint
	}
}

func (f *renderFlags) request(stdin io.Reader) (*livecomponent.RenderRequest, error) {
	state := livecomponent.NewState()
	if f.stateFile != "" {
		var data []byte
		var err error
		if f.stateFile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.stateFile)
		}
		if err != nil {
			return nil, err
		}
		if state, err = livecomponent.ParseState(data); err != nil {
			return nil, err
		}
	}

	b := livecomponent.NewBuilder(state)
	for _, name := range f.calls {
		b.Call(name, nil)
	}
	if len(f.sets) > 0 {
		props := livecomponent.Props{}
		for _, kv := range f.sets {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, fmt.Errorf("--set %q: want key=value", kv)
			}
			props[k] = v
		}
		b.Call("set", props)
	}
	return b.Request(), nil
}

func runRender(ctx context.Context, in io.Reader, out io.Writer, f *renderFlags, logger *slog.Logger) error {
	req, err := f.request(in)
	if err != nil {
		return err
	}

	var transport livecomponent.Transport
	switch f.transport {
	case "http":
		transport = livecomponent.NewHTTPTransport(
			livecomponent.WithBaseURL(f.baseURL),
			livecomponent.WithEndpoint(f.endpoint),
			livecomponent.WithLogger(logger),
		)
	case "ws":
		codec, err := encoding.FrameCodecByName(f.codec)
		if err != nil {
			return err
		}
		target, err := joinURL(f.baseURL, f.cablePath)
		if err != nil {
			return err
		}
		client, err := cable.Dial(ctx, target, cable.WithFrameCodec(codec), cable.WithLogger(logger))
		if err != nil {
			return err
		}
		defer client.Close()
		transport = livecomponent.NewChannelTransport(client, livecomponent.WithLogger(logger))
	default:
		return fmt.Errorf("unknown transport %q (want http or ws)", f.transport)
	}

	if err := transport.Start(ctx); err != nil {
		return err
	}
	html, err := transport.Render(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, html)
	return nil
}

func joinURL(base, path string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr, templates, page, codecName string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render endpoints from a directory of html/template files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			override := func(name string, dst *string, v string) {
				if cmd.Flags().Changed(name) {
					*dst = v
				}
			}
			override("addr", &cfg.Addr, addr)
			override("templates", &cfg.Templates, templates)
			override("page", &cfg.Page, page)
			override("codec", &cfg.Codec, codecName)

			handler, err := newServeHandler(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg.Addr, handler, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&templates, "templates", "templates", "directory of *.html templates")
	cmd.Flags().StringVar(&page, "page", "", "HTML page served at /")
	cmd.Flags().StringVar(&codecName, "codec", "json", "channel frame codec (json or msgpack)")
	return cmd
}

func newServeHandler(cfg Config, logger *slog.Logger) (http.Handler, error) {
	renderer, err := loadTemplates(cfg.Templates)
	if err != nil {
		return nil, err
	}
	codec, err := encoding.FrameCodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	server.Mount(mux, server.New(renderer, server.WithLogger(logger), server.WithFrameCodec(codec)))
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	if cfg.Page != "" {
		mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, cfg.Page)
		})
	}
	return mux, nil
}

func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
