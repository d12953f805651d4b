package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ThalitaPinheiro/defacto/internal/capture"
	"github.com/ThalitaPinheiro/defacto/internal/spec"
	"github.com/ThalitaPinheiro/defacto/internal/store"
)

const (
	backendFile = "file"
	backendBolt = "bolt"

	defaultDocument = "swagger.json"
	defaultBoltKey  = "default"
)

// RecordConfig captures all inputs that influence the record command after
// merging defaults, config file values, and CLI overrides.
type RecordConfig struct {
	Target     string
	Listen     string
	Out        string
	Backend    string
	Key        string
	ConfigPath string
	Resume     bool
	Strict     bool
	Verbose    bool
}

func defaultRecordConfig() RecordConfig {
	return RecordConfig{
		Listen:  "127.0.0.1:8080",
		Out:     defaultDocument,
		Backend: backendFile,
		Key:     defaultBoltKey,
	}
}

var recordRunner = runRecord

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Proxy traffic to a target and record what it answers",
		Long: "Start a local reverse proxy in front of the target. Every JSON exchange that " +
			"passes through it is merged into the captured Swagger document.",
		Example: strings.TrimSpace(`  defacto record --target http://localhost:3000/api --listen :8080
  defacto --config defacto.yaml record --resume --backend bolt --out capture.db`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveRecordConfig(cmd)
			if err != nil {
				return err
			}
			return recordRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("target", "", "Base URL of the service to observe (http/https)")
	flags.String("listen", "", "Address the recording proxy listens on (default 127.0.0.1:8080)")
	flags.String("out", "", "Where the captured document is kept (default swagger.json)")
	flags.String("backend", "", "Storage backend for the document (file|bolt)")
	flags.String("key", "", "Document key inside a bolt database")
	flags.Bool("resume", false, "Continue from an existing captured document")
	flags.Bool("strict", false, "Reject exchanges whose parameters change location")

	return cmd
}

func resolveRecordConfig(cmd *cobra.Command) (*RecordConfig, error) {
	cfg := defaultRecordConfig()

	configPath, verbose, section, err := loadConfigSection(cmd.Flags(), "record")
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = configPath
	if verbose != nil {
		cfg.Verbose = *verbose
	}
	if err := applyRecordSection(&cfg, configPath, section); err != nil {
		return nil, err
	}

	if err := applyRecordFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyRecordSection(cfg *RecordConfig, path string, section map[string]any) error {
	for key, value := range section {
		var err error
		switch key {
		case "target":
			cfg.Target, err = valueAsString(value)
		case "listen":
			cfg.Listen, err = valueAsString(value)
		case "out":
			cfg.Out, err = valueAsString(value)
		case "backend":
			cfg.Backend, err = valueAsString(value)
		case "key":
			cfg.Key, err = valueAsString(value)
		case "resume":
			cfg.Resume, err = valueAsBool(value)
		case "strict":
			cfg.Strict, err = valueAsBool(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q in section record", path, key))
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field record.%s: %v", key, err))
		}
	}
	return nil
}

func applyRecordFlagOverrides(flags *pflag.FlagSet, cfg *RecordConfig) error {
	for name, dst := range map[string]*string{
		"target":  &cfg.Target,
		"listen":  &cfg.Listen,
		"out":     &cfg.Out,
		"backend": &cfg.Backend,
		"key":     &cfg.Key,
	} {
		if err := stringFlag(flags, name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*bool{
		"resume":  &cfg.Resume,
		"strict":  &cfg.Strict,
		"verbose": &cfg.Verbose,
	} {
		if err := boolFlag(flags, name, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *RecordConfig) normalize() {
	c.Target = strings.TrimSpace(c.Target)
	c.Listen = strings.TrimSpace(c.Listen)
	c.Out = strings.TrimSpace(c.Out)
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.Key = strings.TrimSpace(c.Key)
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Out == "" {
		c.Out = defaultDocument
	}
	if c.Backend == "" {
		c.Backend = backendFile
	}
	if c.Key == "" {
		c.Key = defaultBoltKey
	}
}

func (c *RecordConfig) validate() error {
	if c.Target == "" {
		return newUsageError("record: --target is required (set via flag or config file)")
	}
	if _, err := capture.ParseTarget(c.Target); err != nil {
		return newUsageError(fmt.Sprintf("record: %v", err))
	}
	if err := validateBackend("record", c.Backend); err != nil {
		return err
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return newUsageError(fmt.Sprintf("record: invalid --listen %q: %v", c.Listen, err))
	}
	return nil
}

func validateBackend(command, backend string) error {
	switch backend {
	case backendFile, backendBolt:
		return nil
	default:
		return newUsageError(fmt.Sprintf("%s: unsupported --backend %q (allowed: file, bolt)", command, backend))
	}
}

// openBackend opens the storage for a captured document.
func openBackend(kind, path, key string) (store.Backend, error) {
	if kind == backendBolt {
		b, err := store.NewBolt(path, key)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	f, err := store.NewFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func runRecord(ctx context.Context, cfg *RecordConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(os.Stderr, cfg.Verbose)

	target, err := capture.ParseTarget(cfg.Target)
	if err != nil {
		return newUsageError(fmt.Sprintf("record: %v", err))
	}

	backend, err := openBackend(cfg.Backend, cfg.Out, cfg.Key)
	if err != nil {
		return wrapOutputError(err, cfg.Out)
	}
	var storeOpts []store.Option
	storeOpts = append(storeOpts, store.WithLogger(logger))
	if cfg.Resume {
		storeOpts = append(storeOpts, store.WithResume())
	}
	st, err := store.Open(backend, storeOpts...)
	if err != nil {
		_ = backend.Close()
		return wrapOutputError(err, cfg.Out)
	}
	defer st.Close()

	policy := spec.ConflictReport
	if cfg.Strict {
		policy = spec.ConflictReject
	}
	rec := capture.NewRecorder(st, target,
		capture.WithConflictPolicy(policy),
		capture.WithLogger(logger),
	)

	proxy := newRecordingProxy(target, capture.NewTransport(nil, rec))
	proxy.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelError)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return newUsageError(fmt.Sprintf("record: cannot listen on %s: %v", cfg.Listen, err))
	}
	srv := &http.Server{Handler: proxy, ReadHeaderTimeout: 10 * time.Second}

	logger.Info("recording", "target", target.URL.String(), "listen", ln.Addr().String(), "out", cfg.Out, "backend", cfg.Backend)
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("record: serve: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}

	paths := len(st.Snapshot().Paths)
	logger.Info("stopped recording", "paths", paths)
	fmt.Fprintf(os.Stdout, "Captured %d path(s) into %s\n", paths, cfg.Out)
	return nil
}

// newRecordingProxy forwards every request to the target's scheme and host.
// Paths are passed through unchanged, so the observed client keeps
// addressing the target's base path itself.
func newRecordingProxy(target *capture.Target, transport http.RoundTripper) *httputil.ReverseProxy {
	upstream := *target.URL
	upstream.Path = ""
	upstream.RawPath = ""
	upstream.RawQuery = ""
	proxy := httputil.NewSingleHostReverseProxy(&upstream)
	direct := proxy.Director
	proxy.Director = func(req *http.Request) {
		direct(req)
		req.Host = upstream.Host
	}
	proxy.Transport = transport
	return proxy
}

func wrapOutputError(err error, out string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "timeout") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or check that no other recorder holds it.", out, msg))
	}
	return err
}
