// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package catalog models the upstream's category and location trees.
// Both trees are fetched in full and walked locally to drive the
// cascading pickers in the post flow; there is no incremental fetch.
package catalog

import (
	"fmt"
	"strconv"

	"admanager/internal/wire"
)

// Category is one node of the category tree.
type Category struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ChildCount int        `json:"child_count"`
	Children   []Category `json:"children,omitempty"`
}

// Location is one node of the location tree. The root is the sentinel
// "all locations" node (id 0).
type Location struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Latitude  string     `json:"lat"`
	Longitude string     `json:"long"`
	Children  []Location `json:"children,omitempty"`
}

// ParseCategories builds the category tree from a categories document.
func ParseCategories(doc wire.Document) (Category, error) {
	root, ok := doc.GetMap("cat:categories", "cat:category")
	if !ok {
		return Category{}, fmt.Errorf("catalog: categories document missing root node")
	}
	return parseCategory(root), nil
}

// parseCategory converts one raw node. A node whose children-count is
// zero exposes no children, regardless of stray child elements in the
// raw tree.
func parseCategory(node wire.Document) Category {
	cat := Category{
		ID:         node.GetString("@id"),
		Name:       node.GetString("cat:id-name"),
		ChildCount: atoiOrZero(node.GetString("cat:children-count")),
	}
	if cat.ChildCount == 0 {
		return cat
	}
	for _, child := range node.List("cat:category") {
		cat.Children = append(cat.Children, parseCategory(child))
	}
	return cat
}

// ParseLocations builds the location tree from a locations document.
func ParseLocations(doc wire.Document) (Location, error) {
	root, ok := doc.GetMap("loc:locations", "loc:location")
	if !ok {
		return Location{}, fmt.Errorf("catalog: locations document missing root node")
	}
	return parseLocation(root), nil
}

func parseLocation(node wire.Document) Location {
	loc := Location{
		ID:        node.GetString("@id"),
		Name:      node.GetString("loc:localized-name"),
		Latitude:  node.GetString("loc:latitude"),
		Longitude: node.GetString("loc:longitude"),
	}
	for _, child := range node.List("loc:location") {
		loc.Children = append(loc.Children, parseLocation(child))
	}
	return loc
}

// Subcategories walks from the root through the given chain of category
// IDs and returns the children of the last match. An unknown ID anywhere
// in the chain yields an empty slice.
func Subcategories(root Category, ids ...string) []Category {
	node, ok := findCategory(root, ids)
	if !ok {
		return []Category{}
	}
	if node.Children == nil {
		return []Category{}
	}
	return node.Children
}

func findCategory(node Category, ids []string) (Category, bool) {
	if len(ids) == 0 {
		return node, true
	}
	for _, child := range node.Children {
		if child.ID == ids[0] {
			return findCategory(child, ids[1:])
		}
	}
	return Category{}, false
}

// Sublocations is the location-tree counterpart of Subcategories.
func Sublocations(root Location, ids ...string) []Location {
	node, ok := findLocation(root, ids)
	if !ok {
		return []Location{}
	}
	if node.Children == nil {
		return []Location{}
	}
	return node.Children
}

func findLocation(node Location, ids []string) (Location, bool) {
	if len(ids) == 0 {
		return node, true
	}
	for _, child := range node.Children {
		if child.ID == ids[0] {
			return findLocation(child, ids[1:])
		}
	}
	return Location{}, false
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
