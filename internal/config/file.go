package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"

	"bgm-radar/internal/keywords"
)

// keywordEnvPrefix lets operators supply keywords as BGM_KEYWORDS="a,b,c".
const keywordEnvPrefix = "BGM_"

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// LoadFile reads a YAML, JSON or TOML file into a koanf instance.
func LoadFile(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return k, nil
}

// toStrings accepts either a list value or a comma-separated string.
func toStrings(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return parseList(val)
	case []string:
		return val
	case []interface{}:
		return lo.FilterMap(val, func(item interface{}, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	default:
		return nil
	}
}

// KeywordOverride returns a loader reading the "keywords" list from path,
// with BGM_KEYWORDS taking precedence. With neither set the loader yields an empty list.
func KeywordOverride(path string) keywords.OverrideLoader {
	return func() ([]string, error) {
		k := koanf.New(".")
		if path != "" {
			parser, err := parserFor(path)
			if err != nil {
				return nil, err
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return nil, fmt.Errorf("failed to load keyword file %s: %w", path, err)
			}
		}
		if err := k.Load(env.Provider(keywordEnvPrefix, ".", func(s string) string {
			return strings.ToLower(strings.TrimPrefix(s, keywordEnvPrefix))
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load keyword env: %w", err)
		}
		return toStrings(k.Get("keywords")), nil
	}
}
