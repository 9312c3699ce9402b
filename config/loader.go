package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// maxConfigFileSize caps configuration files read from disk
const maxConfigFileSize = 1 << 20

// LoadFile reads a JSON, YAML or TOML file into a Config. Nested maps are
// flattened with '-' so that
//
//	gmsec:
//	  schema-level: 1
//
// becomes gmsec-schema-level=1.
func LoadFile(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "LoadFile", "read "+path)
	}

	raw := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		err = fmt.Errorf("unsupported configuration format %q", ext)
	}
	if err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Config", "LoadFile", "parse "+path)
	}

	c := New()
	flatten(c, "", raw)
	return c, nil
}

func safeReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%s exceeds maximum size of %d bytes", path, maxConfigFileSize)
	}
	return os.ReadFile(path)
}

func flatten(c *Config, prefix string, node map[string]any) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "-" + k
		}

		switch v := node[k].(type) {
		case map[string]any:
			flatten(c, name, v)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			c.AddValue(name, strings.Join(parts, ","))
		case nil:
			c.AddValue(name, "")
		default:
			c.AddValue(name, fmt.Sprint(v))
		}
	}
}
