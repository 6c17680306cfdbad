// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package form

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of field variants a descriptor can produce.
type Kind int

const (
	KindEnum Kind = iota
	KindMultiEnum
	KindText
	KindInteger
	KindDate
	KindBool
)

// String names the kind for templates and logs.
func (k Kind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindMultiEnum:
		return "multienum"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// dateLayout is the input format for date fields; assembled values are
// normalized to a fixed-time instant since the upstream ignores the
// time of day.
const (
	dateLayout  = "2006-01-02"
	dateInstant = "2006-01-02T00:00:00.000Z"
)

// Field is one runtime-generated input field.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Choices  []Choice
}

// FieldSet is the ordered list of fields built for a category.
type FieldSet struct {
	Fields []Field
}

// ValidationError reports a local form validation failure. It never
// reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Build materializes fields from descriptors. Deprecated and
// write-unsupported descriptors are skipped. Field order follows
// descriptor order.
func Build(descriptors []Descriptor) FieldSet {
	var fs FieldSet
	for _, d := range descriptors {
		if d.Deprecated || !d.Writable {
			continue
		}

		f := Field{
			Name:     d.Name,
			Label:    d.Label,
			Required: d.Required,
		}
		switch d.Type {
		case typeEnum:
			f.Kind = KindEnum
			if d.SubType == subTypeMultiValued {
				f.Kind = KindMultiEnum
			}
			f.Choices = d.Choices
		case typeString:
			f.Kind = KindText
		case typeInteger:
			f.Kind = KindInteger
		case typeDate:
			f.Kind = KindDate
		case typeBoolean:
			f.Kind = KindBool
		default:
			continue
		}
		fs.Fields = append(fs.Fields, f)
	}
	return fs
}

// Validate checks submitted values against the field set. The input maps
// field names to submitted values (several for multi-selects). Returns
// the first *ValidationError found, or nil.
func (fs FieldSet) Validate(values map[string][]string) error {
	for _, f := range fs.Fields {
		submitted := values[f.Name]
		joined := strings.TrimSpace(strings.Join(submitted, ""))

		if joined == "" {
			if f.Required {
				return &ValidationError{Field: f.Name, Message: "this field is required"}
			}
			continue
		}

		switch f.Kind {
		case KindInteger:
			if _, err := strconv.Atoi(strings.TrimSpace(submitted[0])); err != nil {
				return &ValidationError{Field: f.Name, Message: "must be a whole number"}
			}
		case KindDate:
			if _, err := time.Parse(dateLayout, strings.TrimSpace(submitted[0])); err != nil {
				return &ValidationError{Field: f.Name, Message: "must be a date in YYYY-MM-DD form"}
			}
		}
	}
	return nil
}

// Value is one normalized attribute value ready for payload assembly.
type Value struct {
	Name  string
	Value string
}

// CollectValues normalizes submitted values in field order:
//
//   - booleans become the literal strings "true"/"false"
//   - multi-selects join their selections with commas, in selection order
//   - dates become a fixed-time ISO-8601 instant
//   - empty values are dropped, but a numeric zero is NOT empty
func (fs FieldSet) CollectValues(values map[string][]string) []Value {
	var out []Value
	for _, f := range fs.Fields {
		submitted := values[f.Name]

		switch f.Kind {
		case KindBool:
			if len(submitted) == 0 {
				continue
			}
			out = append(out, Value{Name: f.Name, Value: normalizeBool(submitted[0])})

		case KindMultiEnum:
			var picked []string
			for _, v := range submitted {
				if strings.TrimSpace(v) != "" {
					picked = append(picked, strings.TrimSpace(v))
				}
			}
			if len(picked) == 0 {
				continue
			}
			out = append(out, Value{Name: f.Name, Value: strings.Join(picked, ",")})

		case KindDate:
			if len(submitted) == 0 || strings.TrimSpace(submitted[0]) == "" {
				continue
			}
			parsed, err := time.Parse(dateLayout, strings.TrimSpace(submitted[0]))
			if err != nil {
				continue
			}
			out = append(out, Value{Name: f.Name, Value: parsed.Format(dateInstant)})

		default:
			if len(submitted) == 0 {
				continue
			}
			v := strings.TrimSpace(submitted[0])
			if v == "" {
				continue
			}
			out = append(out, Value{Name: f.Name, Value: v})
		}
	}
	return out
}

// normalizeBool maps checkbox-style submissions to the literal strings
// the upstream expects.
func normalizeBool(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "y", "yes", "on", "1":
		return "true"
	default:
		return "false"
	}
}
