package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// configFile is a parsed config file. Shared settings live at the top level;
// each command reads its own section:
//
//	verbose: true
//	record:
//	  target: https://api.example.com/v1
//	export:
//	  format: yaml
type configFile struct {
	path    string
	verbose *bool
	section map[string]map[string]any
}

var configSections = []string{"record", "export"}

func readConfigFile(path string) (*configFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	cf := &configFile{path: path, section: map[string]map[string]any{}}
	for key, value := range raw {
		normalized := normalizeKey(key)
		switch normalized {
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return nil, newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cf.verbose = &val
		case "record", "export":
			sec, err := valueAsSection(value)
			if err != nil {
				return nil, newUsageError(fmt.Sprintf("config section %q: %v", key, err))
			}
			cf.section[normalized] = sec
		default:
			return nil, newUsageError(fmt.Sprintf("config file %q: unknown field %q (sections: %s)", path, key, strings.Join(configSections, ", ")))
		}
	}
	return cf, nil
}

// loadConfigSection reads the config file named by --config, if any, and
// returns its verbose setting and the named section with normalized keys.
func loadConfigSection(flags *pflag.FlagSet, name string) (string, *bool, map[string]any, error) {
	configPath, err := flags.GetString("config")
	if err != nil {
		return "", nil, nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		return "", nil, nil, nil
	}
	cf, err := readConfigFile(configPath)
	if err != nil {
		return "", nil, nil, err
	}
	return configPath, cf.verbose, cf.section[name], nil
}

func valueAsSection(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[normalizeKey(k)] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected mapping, got %T", v)
	}
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case int, int64, float64:
		return fmt.Sprint(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func stringFlag(flags *pflag.FlagSet, name string, dst *string) error {
	if !flags.Changed(name) {
		return nil
	}
	value, err := flags.GetString(name)
	if err != nil {
		return err
	}
	*dst = strings.TrimSpace(value)
	return nil
}

func boolFlag(flags *pflag.FlagSet, name string, dst *bool) error {
	if !flags.Changed(name) {
		return nil
	}
	value, err := flags.GetBool(name)
	if err != nil {
		return err
	}
	*dst = value
	return nil
}
