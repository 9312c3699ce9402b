// Package config provides the key/value configuration object consumed by the
// specification engine, the connection manager and the middleware drivers.
package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/golobby/cast"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// Configuration keys understood by this module
const (
	KeySpecificationVersion = "gmsec-specification-version"
	KeySchemaPath           = "gmsec-schema-path"
	KeySchemaLevel          = "gmsec-schema-level"
	KeyValidate             = "gmsec-msg-content-validate"
	KeyValidateAll          = "gmsec-msg-content-validate-all"
	KeyValidateSend         = "gmsec-msg-content-validate-send"
	KeyValidateRecv         = "gmsec-msg-content-validate-recv"
	KeyMiddlewareID         = "mw-id"
	KeyMiddlewareServer     = "mw-server"
	KeyMiddlewareUsername   = "mw-username"
	KeyMiddlewarePassword   = "mw-password"
	KeyClientName           = "mw-client-name"
)

// Config is an insertion-ordered set of case-insensitive string keys.
// It is safe for concurrent use.
type Config struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]string
}

// New creates an empty configuration
func New() *Config {
	return &Config{values: make(map[string]string)}
}

// NewFromArgs builds a configuration from "key=value" arguments.
// Arguments without '=' are ignored.
func NewFromArgs(args []string) *Config {
	c := New()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		c.AddValue(key, value)
	}
	return c
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// AddValue sets key to value, keeping the original position of an existing key
func (c *Config) AddValue(key, value string) {
	k := normalizeKey(key)
	if k == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[k]; !exists {
		c.keys = append(c.keys, k)
	}
	c.values[k] = strings.TrimSpace(value)
}

// ClearValue removes key and reports whether it was present
func (c *Config) ClearValue(key string) bool {
	k := normalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[k]; !exists {
		return false
	}
	delete(c.values, k)
	for i, existing := range c.keys {
		if existing == k {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

// HasValue reports whether key is set
func (c *Config) HasValue(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[normalizeKey(key)]
	return ok
}

// Value returns the value for key or defaultVal when absent
func (c *Config) Value(key, defaultVal string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.values[normalizeKey(key)]; ok {
		return v
	}
	return defaultVal
}

// IntegerValue returns key as an integer, or defaultVal when absent.
// A present but malformed value is an ErrInvalidConfigValue error.
func (c *Config) IntegerValue(key string, defaultVal int) (int, error) {
	v, err := c.typedValue(key, reflect.TypeOf(defaultVal), defaultVal)
	if err != nil {
		return defaultVal, err
	}
	return v.(int), nil
}

// BooleanValue returns key as a boolean, or defaultVal when absent
func (c *Config) BooleanValue(key string, defaultVal bool) (bool, error) {
	v, err := c.typedValue(key, reflect.TypeOf(defaultVal), defaultVal)
	if err != nil {
		return defaultVal, err
	}
	return v.(bool), nil
}

// DoubleValue returns key as a float64, or defaultVal when absent
func (c *Config) DoubleValue(key string, defaultVal float64) (float64, error) {
	v, err := c.typedValue(key, reflect.TypeOf(defaultVal), defaultVal)
	if err != nil {
		return defaultVal, err
	}
	return v.(float64), nil
}

func (c *Config) typedValue(key string, target reflect.Type, defaultVal any) (any, error) {
	raw := c.Value(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	if target.Kind() == reflect.Bool {
		raw = strings.ToLower(raw)
	}

	v, err := cast.FromType(raw, target)
	if err != nil {
		return nil, errors.Newf(errors.ErrInvalidConfigValue, "%s=%q is not a valid %s", normalizeKey(key), raw, target.Kind())
	}
	return v, nil
}

// Keys returns the keys in insertion order
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.keys...)
}

// Merge copies every key of other into c. Existing keys are replaced
// only when overwrite is true.
func (c *Config) Merge(other *Config, overwrite bool) {
	if other == nil || other == c {
		return
	}
	for _, k := range other.Keys() {
		if !overwrite && c.HasValue(k) {
			continue
		}
		c.AddValue(k, other.Value(k, ""))
	}
}

// Clone returns an independent copy
func (c *Config) Clone() *Config {
	clone := New()
	clone.Merge(c, true)
	return clone
}

// Map returns the configuration as a plain map
func (c *Config) Map() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// String renders the configuration as sorted key=value lines with
// password values masked.
func (c *Config) String() string {
	values := c.Map()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := values[k]
		if strings.Contains(k, "password") {
			v = "****"
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	return b.String()
}
