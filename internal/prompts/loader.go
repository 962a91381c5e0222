// Package prompts holds the LLM prompt templates. Each embedded JSON file
// maps template names to text/template sources.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var files embed.FS

// set is every template of every file, named "<file>:<key>"
type set map[string]*template.Template

var load = sync.OnceValues(func() (set, error) {
	return parse(files)
})

func parse(fsys fs.FS) (set, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}

	out := make(set)
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var sources map[string]string
		if err := json.Unmarshal(data, &sources); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		for key, src := range sources {
			id := name + ":" + key
			tmpl, err := template.New(id).Option("missingkey=error").Parse(src)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", id, err)
			}
			out[id] = tmpl
		}
	}
	return out, nil
}

func lookup(file, key string) (*template.Template, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	tmpl, ok := all[file+":"+key]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found in %s", key, file)
	}
	return tmpl, nil
}

// Get returns the raw source of a template
func Get(file, key string) (string, error) {
	tmpl, err := lookup(file, key)
	if err != nil {
		return "", err
	}
	return tmpl.Root.String(), nil
}

// Render executes a template with data. Referencing a key data does not
// hold is an error.
func Render(file, key string, data any) (string, error) {
	tmpl, err := lookup(file, key)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s:%s: %w", file, key, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// MustRender is Render for templates shipped with the binary; it panics
// on error
func MustRender(file, key string, data any) string {
	out, err := Render(file, key, data)
	if err != nil {
		panic(err)
	}
	return out
}
