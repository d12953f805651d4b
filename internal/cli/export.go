package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ThalitaPinheiro/defacto/internal/spec"
	"github.com/ThalitaPinheiro/defacto/internal/store"
)

// ExportConfig captures the options for the export command.
type ExportConfig struct {
	In         string
	Backend    string
	Key        string
	Format     string
	Out        string
	Title      string
	Version    string
	ConfigPath string
	Check      bool
	Verbose    bool
}

func defaultExportConfig() ExportConfig {
	return ExportConfig{
		In:      defaultDocument,
		Backend: backendFile,
		Key:     defaultBoltKey,
		Format:  "yaml",
	}
}

var exportRunner = runExport

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert a captured document to OpenAPI 3",
		Long: "Convert a captured Swagger 2.0 document to a validated OpenAPI 3 document. " +
			"Writes to stdout unless --out is given.",
		Example: strings.TrimSpace(`  defacto export --in swagger.json --format yaml --out openapi.yaml
  defacto export --backend bolt --in capture.db --key staging --check`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveExportConfig(cmd)
			if err != nil {
				return err
			}
			return exportRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("in", "", "Captured document to read (default swagger.json)")
	flags.String("backend", "", "Storage backend holding the document (file|bolt)")
	flags.String("key", "", "Document key inside a bolt database")
	flags.String("format", "", "Output format (yaml|json); defaults to yaml")
	flags.String("out", "", "Output file; stdout when omitted or -")
	flags.String("title", "", "Value for info.title")
	flags.String("version", "", "Value for info.version")
	flags.Bool("check", false, "Verify every stored example against its schema before exporting")

	return cmd
}

func resolveExportConfig(cmd *cobra.Command) (*ExportConfig, error) {
	cfg := defaultExportConfig()

	configPath, verbose, section, err := loadConfigSection(cmd.Flags(), "export")
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = configPath
	if verbose != nil {
		cfg.Verbose = *verbose
	}
	if err := applyExportSection(&cfg, configPath, section); err != nil {
		return nil, err
	}

	if err := applyExportFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyExportSection(cfg *ExportConfig, path string, section map[string]any) error {
	for key, value := range section {
		var err error
		switch key {
		case "in":
			cfg.In, err = valueAsString(value)
		case "backend":
			cfg.Backend, err = valueAsString(value)
		case "key":
			cfg.Key, err = valueAsString(value)
		case "format":
			cfg.Format, err = valueAsString(value)
		case "out":
			cfg.Out, err = valueAsString(value)
		case "title":
			cfg.Title, err = valueAsString(value)
		case "version":
			cfg.Version, err = valueAsString(value)
		case "check":
			cfg.Check, err = valueAsBool(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q in section export", path, key))
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field export.%s: %v", key, err))
		}
	}
	return nil
}

func applyExportFlagOverrides(flags *pflag.FlagSet, cfg *ExportConfig) error {
	for name, dst := range map[string]*string{
		"in":      &cfg.In,
		"backend": &cfg.Backend,
		"key":     &cfg.Key,
		"format":  &cfg.Format,
		"out":     &cfg.Out,
		"title":   &cfg.Title,
		"version": &cfg.Version,
	} {
		if err := stringFlag(flags, name, dst); err != nil {
			return err
		}
	}
	if err := boolFlag(flags, "check", &cfg.Check); err != nil {
		return err
	}
	return boolFlag(flags, "verbose", &cfg.Verbose)
}

func (c *ExportConfig) normalize() {
	c.In = strings.TrimSpace(c.In)
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.Key = strings.TrimSpace(c.Key)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Out = strings.TrimSpace(c.Out)
	c.Title = strings.TrimSpace(c.Title)
	c.Version = strings.TrimSpace(c.Version)
	if c.In == "" {
		c.In = defaultDocument
	}
	if c.Backend == "" {
		c.Backend = backendFile
	}
	if c.Key == "" {
		c.Key = defaultBoltKey
	}
	if c.Format == "yml" || c.Format == "" {
		c.Format = "yaml"
	}
	if c.Out == "-" {
		c.Out = ""
	}
}

func (c *ExportConfig) validate() error {
	switch c.Format {
	case "yaml", "json":
	default:
		return newUsageError(fmt.Sprintf("export: unsupported --format %q (allowed: yaml, json)", c.Format))
	}
	return validateBackend("export", c.Backend)
}

func runExport(ctx context.Context, cfg *ExportConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(os.Stderr, cfg.Verbose)

	doc, err := loadCaptured(cfg)
	if err != nil {
		return err
	}
	logger.Debug("loaded captured document", "in", cfg.In, "backend", cfg.Backend, "paths", len(doc.Paths))

	if cfg.Check {
		if errs := doc.CheckExamples(); len(errs) > 0 {
			for _, e := range errs {
				logger.Error("example rejected", "err", e)
			}
			return fmt.Errorf("export: %d stored example(s) do not match their schema", len(errs))
		}
	}

	opts := []spec.Option{spec.WithLocation(cfg.In)}
	if cfg.Title != "" {
		opts = append(opts, spec.WithTitle(cfg.Title))
	}
	if cfg.Version != "" {
		opts = append(opts, spec.WithVersion(cfg.Version))
	}
	v3doc, err := spec.ToOpenAPI3(ctx, doc, opts...)
	if err != nil {
		return mapSpecError(err)
	}

	raw, err := json.Marshal(v3doc)
	if err != nil {
		return fmt.Errorf("export: encode document: %w", err)
	}
	out, err := render(raw, cfg.Format)
	if err != nil {
		return err
	}

	if cfg.Out == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	return writeAtomic(cfg.Out, out)
}

func loadCaptured(cfg *ExportConfig) (*spec.Document, error) {
	if cfg.Backend == backendFile {
		doc, err := spec.LoadFile(cfg.In)
		if err != nil {
			return nil, mapSpecError(err)
		}
		return doc, nil
	}

	if _, err := os.Stat(cfg.In); err != nil {
		return nil, newUsageError(fmt.Sprintf("export: %v", err))
	}
	backend, err := openBackend(cfg.Backend, cfg.In, cfg.Key)
	if err != nil {
		return nil, err
	}
	defer backend.Close()
	doc, err := backend.Load()
	if errors.Is(err, store.ErrNotFound) {
		return nil, newUsageError(fmt.Sprintf("export: no document under key %q in %s", cfg.Key, cfg.In))
	}
	if err != nil {
		return nil, mapSpecError(err)
	}
	return doc, nil
}

// mapSpecError turns structured spec errors into friendly messages.
func mapSpecError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}

// render re-encodes a JSON document. YAML output goes through a node tree so
// key order is kept and JSON's flow style is dropped.
func render(raw []byte, format string) ([]byte, error) {
	if format == "json" {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("export: decode document: %w", err)
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("export: encode document: %w", err)
		}
		return append(out, '\n'), nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("export: decode document: %w", err)
	}
	clearStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("export: encode yaml: %w", err)
	}
	return out, nil
}

// clearStyle resets every node to block style. The encoder still quotes
// strings that would otherwise read back as another type.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

func writeAtomic(path string, data []byte) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("export: resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("export: cannot create parent directory: %v", err))
	}
	// Atomic write via temp + rename
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return newUsageError(fmt.Sprintf("export: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("export: cannot place file at %s: %v", abs, err))
	}
	fmt.Fprintf(os.Stderr, "Wrote OpenAPI document to %s\n", abs)
	return nil
}
