package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiler compiles JSON Schema documents and caches them by URL
type Compiler struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewCompiler creates a new schema compiler
func NewCompiler() *Compiler {
	return &Compiler{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Compile compiles document registered under name and returns the schema at
// ref, a JSON pointer fragment such as "#/$defs/record" or "" for the root
func (c *Compiler) Compile(name string, document []byte, ref string) (*jsonschema.Schema, error) {
	cacheKey := name + ref

	c.mu.RLock()
	if compiled, exists := c.compiled[cacheKey]; exists {
		c.mu.RUnlock()
		return compiled, nil
	}
	c.mu.RUnlock()

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, bytes.NewReader(document)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := compiler.Compile(name + ref)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	c.mu.Lock()
	c.compiled[cacheKey] = compiled
	c.mu.Unlock()

	return compiled, nil
}

// MustCompile is like Compile but panics on error. Used for embedded documents.
func (c *Compiler) MustCompile(name string, document []byte, ref string) *jsonschema.Schema {
	compiled, err := c.Compile(name, document, ref)
	if err != nil {
		panic(err)
	}
	return compiled
}

// ValidateJSON decodes payload and validates it against compiled. The
// returned string locates the first violation, empty when valid.
func ValidateJSON(compiled *jsonschema.Schema, payload []byte) (string, error) {
	var doc interface{}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return "", fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		location, reason := describe(err)
		return location, fmt.Errorf("%s", reason)
	}
	return "", nil
}

// describe returns the instance location and message of the deepest cause
func describe(err error) (string, string) {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return "", err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return pointerToPath(ve.InstanceLocation), ve.Message
}

// pointerToPath renders "/fields/0/label" as "fields[0].label"
func pointerToPath(pointer string) string {
	if pointer == "" || pointer == "/" {
		return ""
	}
	var b strings.Builder
	for _, token := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if isIndex(token) {
			b.WriteString("[" + token + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(token)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
