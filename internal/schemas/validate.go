// Package schemas checks inbound JSON payloads against embedded JSON
// Schemas before they are decoded.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var files embed.FS

// InboundEmail is the schema of the mail provider webhook body
const InboundEmail = "inbound_email.schema.json"

// Problem is one schema violation. Path is dotted, "(root)" for the
// document itself.
type Problem struct {
	Path   string
	Reason string
}

// PayloadError lists every violation of a document
type PayloadError struct {
	Schema   string
	Problems []Problem
}

func (e *PayloadError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Path + ": " + p.Reason
	}
	return fmt.Sprintf("payload does not match %s: %s", e.Schema, strings.Join(parts, "; "))
}

// Schema is a compiled JSON Schema
type Schema struct {
	name     string
	compiled *gojsonschema.Schema
}

// Compile compiles a schema document
func Compile(name string, doc []byte) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// Check returns a *PayloadError when doc is not JSON or violates the schema
func (s *Schema) Check(doc []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &PayloadError{Schema: s.name, Problems: []Problem{{Path: "(root)", Reason: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	pe := &PayloadError{Schema: s.name}
	for _, re := range result.Errors() {
		path := re.Field()
		if path == "" {
			path = "(root)"
		}
		pe.Problems = append(pe.Problems, Problem{Path: path, Reason: re.Description()})
	}
	return pe
}

var (
	mu       sync.Mutex
	compiled = map[string]*Schema{}
)

// Load returns the embedded schema name, compiling it on first use
func Load(name string) (*Schema, error) {
	mu.Lock()
	defer mu.Unlock()
	if s, ok := compiled[name]; ok {
		return s, nil
	}
	doc, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("unknown schema %s: %w", name, err)
	}
	s, err := Compile(name, doc)
	if err != nil {
		return nil, err
	}
	compiled[name] = s
	return s, nil
}

// ValidateInboundEmail checks a webhook body
func ValidateInboundEmail(doc []byte) error {
	s, err := Load(InboundEmail)
	if err != nil {
		return err
	}
	return s.Check(doc)
}
