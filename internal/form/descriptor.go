// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package form builds the dynamic ad-attribute input form from the
// upstream's attribute metadata. The upstream describes each category's
// fields at runtime (type, choices, required flag, dependent choices);
// this package turns those descriptors into a closed set of typed field
// variants that the handlers render and validate.
package form

import (
	"log/slog"

	"admanager/internal/wire"
)

// Attribute type names as the upstream reports them.
const (
	typeEnum    = "ENUM"
	typeString  = "STRING"
	typeInteger = "INTEGER"
	typeDate    = "DATE"
	typeBoolean = "BOOLEAN"

	subTypeMultiValued = "MULTI_VALUED"
)

// Choice is one selectable value with its display label.
type Choice struct {
	Value string `json:"id"`
	Label string `json:"name"`
}

// Descriptor is the parsed metadata for one dynamic attribute.
type Descriptor struct {
	Name       string
	Label      string
	Type       string
	SubType    string
	Required   bool
	Deprecated bool
	Writable   bool
	Choices    []Choice
}

// ParseAttributes extracts attribute descriptors from a category's
// metadata document. Some categories expose non-standard metadata
// shapes; rather than failing the whole form, the parser degrades to
// treating the lone attribute found as a single ENUM descriptor and
// reports degraded=true so the caller can warn the user.
func ParseAttributes(doc wire.Document) (descriptors []Descriptor, degraded bool) {
	nodes := doc.List("ad:ad", "attr:attributes", "attr:attribute")
	if len(nodes) == 0 {
		return nil, false
	}

	for _, node := range nodes {
		attrType := node.GetString("@type")
		if attrType == "" {
			// Non-standard shape: no declared type. Salvage the node as a
			// single ENUM if it at least carries supported values.
			if salvaged, ok := salvageEnum(node); ok {
				slog.Warn("attribute metadata has non-standard shape, degrading to single enum",
					"attribute", salvaged.Name)
				return []Descriptor{salvaged}, true
			}
			continue
		}

		d := Descriptor{
			Name:       node.GetString("@name"),
			Label:      node.GetString("@localized-label"),
			Type:       attrType,
			SubType:    node.GetString("@sub-type"),
			Required:   node.GetString("@required") == "true" || node.GetString("@write") == "required",
			Deprecated: node.GetString("@deprecated") == "true",
			Writable:   node.GetString("@write") != "unsupported",
		}
		if attrType == typeEnum {
			d.Choices = parseChoices(node.ListValues("attr:supported-value"))
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, false
}

// salvageEnum builds a best-effort ENUM descriptor from a node that is
// missing the standard attribute markers.
func salvageEnum(node wire.Document) (Descriptor, bool) {
	values := node.ListValues("attr:supported-value")
	if len(values) == 0 {
		return Descriptor{}, false
	}
	return Descriptor{
		Name:     node.GetString("@name"),
		Label:    node.GetString("@localized-label"),
		Type:     typeEnum,
		Writable: true,
		Choices:  parseChoices(values),
	}, true
}

// parseChoices converts supported-value nodes to ordered choices. A node
// holds the value as text content and the label as an attribute; a value
// without attributes parses as a bare string and doubles as its label.
func parseChoices(nodes []any) []Choice {
	choices := make([]Choice, 0, len(nodes))
	for _, node := range nodes {
		value := wire.Text(node)
		label := value
		if m, ok := node.(map[string]any); ok {
			if l, ok := m["@localized-label"].(string); ok {
				label = l
			}
		}
		if value == "" && label == "" {
			continue
		}
		choices = append(choices, Choice{Value: value, Label: label})
	}
	return choices
}

// AdTypes returns the supported ad-type choices declared in a category's
// metadata document. Empty when the category declares none.
func AdTypes(doc wire.Document) []Choice {
	return parseChoices(doc.ListValues("ad:ad", "ad:ad-type", "ad:supported-value"))
}

// PriceTypeSpecified is the price type that carries an amount; all other
// price types must omit it.
const PriceTypeSpecified = "SPECIFIED_AMOUNT"

// PriceTypes returns the fixed set of price type choices.
func PriceTypes() []Choice {
	return []Choice{
		{Value: PriceTypeSpecified, Label: "Specified Amount"},
		{Value: "FREE", Label: "Free"},
		{Value: "PLEASE_CONTACT", Label: "Please Contact"},
		{Value: "SWAP_TRADE", Label: "Swap/Trade"},
	}
}

// ResolveDependentChoices returns the choices valid under parentValue
// for the dependent attribute declared in the metadata document, in
// document order. Unknown parent values resolve to an empty slice.
// Callers refetch the metadata document before resolving — dependent
// choices are never served from a stale cache.
func ResolveDependentChoices(doc wire.Document, parentValue string) []Choice {
	groups := doc.List("ad:ad", "attr:dependent-attributes", "attr:dependent-attribute", "attr:dependent-supported-value")
	for _, group := range groups {
		if group.GetString("attr:supported-value") != parentValue {
			continue
		}
		return parseChoices(group.ListValues("attr:dependent-attribute", "attr:supported-value"))
	}
	return []Choice{}
}
