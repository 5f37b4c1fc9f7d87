// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package schema documents pipeline definitions and tool settings by
// reflecting over their yaml and docdesc struct tags.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/protpipe/internal/config"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
)

const jsonSchemaDraft = "https://json-schema.org/draft/2020-12/schema"

// ErrNotStruct is returned when a value to document is not a struct.
var ErrNotStruct = errors.New("expected a struct")

// Field is one documented key of a YAML document.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	// Default is the non-zero value of the documented instance.
	Default any
	Enum    []string
	// Fields are the members of objects and of arrays of objects.
	Fields []Field
	AnyOf  []map[string]any
}

// Fields lists the YAML keys of v, which must be a struct or a pointer to one.
// Non-zero field values of v are reported as defaults.
func Fields(v any) ([]Field, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %s", ErrNotStruct, rv.Kind())
	}

	return structFields(rv), nil
}

func structFields(v reflect.Value) []Field {
	t := v.Type()

	var out []Field

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			out = append(out, structFields(v.Field(i))...)
			continue
		}

		tag := sf.Tag.Get("yaml")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToLower(sf.Name)
		}

		f := Field{
			Name:        name,
			Type:        schemaType(sf.Type),
			Description: sf.Tag.Get("docdesc"),
			Required:    !strings.Contains(opts, "omitempty"),
		}

		fv := v.Field(i)

		switch et := elemType(sf.Type); {
		case et.Kind() == reflect.Struct && f.Type == "object":
			f.Fields = structFields(fv)
		case et.Kind() == reflect.Struct:
			f.Fields = structFields(reflect.Zero(et))
		case !fv.IsZero():
			f.Default = fv.Interface()
		}

		out = append(out, f)
	}

	return out
}

func elemType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}

	return t
}

// schemaType converts a Go type to a JSON schema type.
func schemaType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Pointer:
		return schemaType(t.Elem())
	default:
		return "string"
	}
}

func find(fields []Field, name string) *Field {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}

	return nil
}

func object(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))

	var required []string

	for _, f := range fields {
		props[f.Name] = f.property()

		if f.Required {
			required = append(required, f.Name)
		}
	}

	out := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}

	if len(required) > 0 {
		out["required"] = required
	}

	return out
}

func (f Field) property() map[string]any {
	prop := map[string]any{"type": f.Type}

	if f.Description != "" {
		prop["description"] = f.Description
	}

	if f.Default != nil {
		prop["default"] = f.Default
	}

	if len(f.Enum) > 0 {
		prop["enum"] = f.Enum
	}

	if len(f.AnyOf) > 0 {
		prop["anyOf"] = f.AnyOf
	}

	if len(f.Fields) == 0 {
		return prop
	}

	obj := object(f.Fields)

	if f.Type == "array" {
		prop["items"] = obj
		return prop
	}

	for k, v := range obj {
		prop[k] = v
	}

	return prop
}

// Tool returns the JSON schema of the settings of a registered tool.
func Tool(reg runner.Registration) (map[string]any, error) {
	if reg.Settings == nil {
		return map[string]any{"type": "object", "description": reg.Description, "additionalProperties": false}, nil
	}

	fields, err := Fields(reg.Settings)
	if err != nil {
		return nil, err
	}

	out := object(fields)
	out["description"] = reg.Description

	return out, nil
}

// Pipeline returns the JSON schema of a pipeline definition using the tools of reg.
func Pipeline(reg runner.Registry) (map[string]any, error) {
	fields, err := Fields(config.Pipeline{})
	if err != nil {
		return nil, err
	}

	if stages := find(fields, "stages"); stages != nil {
		if tool := find(stages.Fields, "tool"); tool != nil {
			tool.Enum = reg.Names()
		}

		if settings := find(stages.Fields, "settings"); settings != nil {
			for _, name := range reg.Names() {
				s, err := Tool(reg[name])
				if err != nil {
					return nil, fmt.Errorf("tool %s: %w", name, err)
				}

				s["title"] = name
				settings.AnyOf = append(settings.AnyOf, s)
			}
		}
	}

	out := object(fields)
	out["$schema"] = jsonSchemaDraft
	out["title"] = "protpipe pipeline definition"

	return out, nil
}

// WriteJSON writes a schema as indented JSON.
func WriteJSON(w io.Writer, schema map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(schema)
}

// WriteMarkdown writes a settings table for every tool of reg.
func WriteMarkdown(w io.Writer, reg runner.Registry) error {
	var sb strings.Builder

	sb.WriteString("# Tool settings\n")

	for _, name := range reg.Names() {
		r := reg[name]
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n", name, r.Description)

		if r.Settings == nil {
			continue
		}

		fields, err := Fields(r.Settings)
		if err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}

		if len(fields) == 0 {
			continue
		}

		sb.WriteString("\n| Key | Type | Default | Description |\n")
		sb.WriteString("|-----|------|---------|-------------|\n")

		for _, f := range fields {
			def := ""
			if f.Default != nil {
				def = fmt.Sprintf("`%v`", f.Default)
			}

			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", f.Name, f.Type, def, strings.ReplaceAll(f.Description, "|", "\\|"))
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

// WriteYAMLExample writes a stage block for the named tool with every
// setting at its default.
func WriteYAMLExample(w io.Writer, name string, reg runner.Registration) error {
	stage := yaml.MapSlice{
		{Key: "tool", Value: name},
		{Key: "prefix", Value: name},
	}

	if reg.Settings != nil {
		stage = append(stage, yaml.MapItem{Key: "settings", Value: reg.Settings})
	}

	b, err := yaml.Marshal(map[string]any{"stages": []yaml.MapSlice{stage}})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "# %s\n%s", reg.Description, b)

	return err
}
