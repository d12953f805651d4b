package cli

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "init",
        Short: "Scaffold a sample defacto configuration file",
        Long:  "Scaffold a commented defacto configuration file that documents the record and export options.",
        RunE: func(cmd *cobra.Command, args []string) error {
            out, err := cmd.Flags().GetString("out")
            if err != nil {
                return err
            }
            force, err := cmd.Flags().GetBool("force")
            if err != nil {
                return err
            }
            verbose, err := cmd.Flags().GetBool("verbose")
            if err != nil {
                return err
            }
            cfg := &InitConfig{
                OutputPath: out,
                Force:      force,
                Verbose:    verbose,
            }
            return initRunner(cmd.Context(), cfg)
        },
    }

    cmd.Flags().String("out", "defacto.yaml", "Where to write the sample config file")
    cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

    return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
    logger := newLogger(os.Stderr, cfg.Verbose)

    out := strings.TrimSpace(cfg.OutputPath)
    if out == "" {
        out = "defacto.yaml"
    }
    absPath, err := filepath.Abs(out)
    if err != nil {
        return fmt.Errorf("init: resolve output path: %w", err)
    }

    if st, err := os.Stat(absPath); err == nil && !cfg.Force {
        if st.Mode().IsRegular() {
            return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
        }
    }

    if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
    }

    content := strings.TrimSpace(sampleConfigYAML) + "\n"

    // Atomic write via temp + rename
    tmp := absPath + ".tmp"
    if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
    }
    if err := os.Rename(tmp, absPath); err != nil {
        _ = os.Remove(tmp)
        return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
    }
    logger.DebugContext(ctx, "wrote sample config", "path", absPath, "force", cfg.Force)
    fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
    return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# defacto configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Enable debug logging for every command.
# verbose: false

record:
  # Base URL of the service to observe. Only requests to this host[:port]
  # and under this path are recorded.
  # target: http://localhost:3000/api

  # Address the recording proxy listens on.
  # listen: 127.0.0.1:8080

  # Where the captured document is kept (a JSON file, or a bolt database).
  # out: swagger.json

  # Storage backend (file|bolt).
  # backend: file

  # Document key inside a bolt database.
  # key: default

  # Continue from an existing captured document instead of starting empty.
  # resume: false

  # Reject exchanges whose parameters change location instead of warning.
  # strict: false

export:
  # Captured document to read.
  # in: swagger.json

  # Output format (yaml|json).
  # format: yaml

  # Output file; stdout when omitted.
  # out: openapi.yaml

  # info.title and info.version of the exported document.
  # title: Observed API
  # version: 0.0.0

  # Verify stored examples against their schemas first.
  # check: false
`
