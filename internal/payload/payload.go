// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package payload assembles the outbound ad document posted to the
// upstream. The assembled tree always carries every required section,
// even when empty — a missing section is out of contract for the
// upstream schema.
package payload

import (
	"strconv"

	"admanager/internal/form"
	"admanager/internal/geo"
	"admanager/internal/wire"
)

// Namespace declarations the upstream requires on the root element.
const (
	nsTypes = "http://www.ebayclassifiedsgroup.com/schema/types/v1"
	nsCat   = "http://www.ebayclassifiedsgroup.com/schema/category/v1"
	nsLoc   = "http://www.ebayclassifiedsgroup.com/schema/location/v1"
	nsAd    = "http://www.ebayclassifiedsgroup.com/schema/ad/v1"
	nsAttr  = "http://www.ebayclassifiedsgroup.com/schema/attribute/v1"
	nsPic   = "http://www.ebayclassifiedsgroup.com/schema/picture/v1"
	nsUser  = "http://www.ebayclassifiedsgroup.com/schema/user/v1"
	nsRate  = "http://www.ebayclassifiedsgroup.com/schema/rate/v1"
	nsReply = "http://www.ebayclassifiedsgroup.com/schema/reply/v1"
)

// searchRadius is the fixed visibility radius in metres attached to
// geocoded addresses.
const searchRadius = "400.0"

// Picture size variants. The upload endpoint returns one base URL; each
// display size is the same URL with a size rule in the query string.
var pictureSizes = []struct {
	rel  string
	rule string
}{
	{"extraLarge", "kijijica-640-jpg"},
	{"large", "kijijica-400-jpg"},
	{"normal", "kijijica-300-jpg"},
	{"thumbnail", "kijijica-64-jpg"},
}

// Account identifies the posting user. Injected from the session, never
// from the submitted form.
type Account struct {
	ID    string
	Email string
	Name  string
}

// Input is everything the assembler merges into one outbound document.
type Input struct {
	AdType      string
	Title       string
	Description string
	PriceType   string
	PriceAmount string
	PostalCode  string
	FullAddress string
	Phone       string

	CategoryID string
	LocationID string

	Coordinates *geo.Coordinates
	Attributes  []form.Value
	PictureURLs []string
	Account     Account
}

// Assemble builds the complete ad document. The merge is deterministic:
// identical inputs marshal to byte-identical XML.
func Assemble(in Input) wire.Document {
	locationID := in.LocationID
	if locationID == "" {
		// "Canada", the root sentinel.
		locationID = "0"
	}

	ad := map[string]any{
		"@xmlns:types": nsTypes,
		"@xmlns:cat":   nsCat,
		"@xmlns:loc":   nsLoc,
		"@xmlns:ad":    nsAd,
		"@xmlns:attr":  nsAttr,
		"@xmlns:pic":   nsPic,
		"@xmlns:user":  nsUser,
		"@xmlns:rate":  nsRate,
		"@xmlns:reply": nsReply,
		"@locale":      "en-CA",

		"ad:title":       in.Title,
		"ad:description": in.Description,
		"ad:ad-type":     map[string]any{"ad:value": in.AdType},
		"ad:price":       assemblePrice(in),
		"ad:ad-address":  assembleAddress(in),
		"ad:phone":       in.Phone,

		"cat:category":  map[string]any{"@id": in.CategoryID},
		"loc:locations": map[string]any{"loc:location": map[string]any{"@id": locationID}},

		"ad:account-id":          in.Account.ID,
		"ad:email":               in.Account.Email,
		"ad:poster-contact-name": in.Account.Name,

		"attr:attributes": assembleAttributes(in.Attributes),
		"pic:pictures":    assemblePictures(in.PictureURLs),
	}
	return wire.Document{"ad:ad": ad}
}

// assemblePrice carries the amount only for the specified-amount price
// type; other types must omit it even when an amount was entered.
func assemblePrice(in Input) map[string]any {
	price := map[string]any{
		"types:price-type": map[string]any{"types:value": in.PriceType},
	}
	if in.PriceType == form.PriceTypeSpecified && in.PriceAmount != "" {
		price["types:amount"] = in.PriceAmount
	}
	return price
}

func assembleAddress(in Input) map[string]any {
	addr := map[string]any{
		"types:zip-code":     in.PostalCode,
		"types:full-address": in.FullAddress,
	}
	if in.Coordinates != nil {
		addr["types:latitude"] = formatCoordinate(in.Coordinates.Latitude)
		addr["types:longitude"] = formatCoordinate(in.Coordinates.Longitude)
		addr["types:radius"] = searchRadius
	}
	return addr
}

func assembleAttributes(values []form.Value) map[string]any {
	if len(values) == 0 {
		return map[string]any{}
	}
	entries := make([]any, 0, len(values))
	for _, v := range values {
		entries = append(entries, map[string]any{
			"@type":            "",
			"@localized-label": "",
			"@name":            v.Name,
			"attr:value":       v.Value,
		})
	}
	return map[string]any{"attr:attribute": entries}
}

func assemblePictures(urls []string) map[string]any {
	if len(urls) == 0 {
		return map[string]any{}
	}
	pictures := make([]any, 0, len(urls))
	for _, base := range urls {
		links := make([]any, 0, len(pictureSizes))
		for _, size := range pictureSizes {
			links = append(links, map[string]any{
				"@rel":  size.rel,
				"@href": base + "?rule=" + size.rule,
			})
		}
		pictures = append(pictures, map[string]any{"pic:link": links})
	}
	return map[string]any{"pic:picture": pictures}
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// RefreshPictures replaces the stored payload's picture section with the
// live ad's current picture data. Stored snapshots can hold image URLs
// from a host the upstream has since retired; the live ad always carries
// working links.
func RefreshPictures(stored, live wire.Document) wire.Document {
	ad, ok := stored.GetMap("ad:ad")
	if !ok {
		return stored
	}
	if pics, ok := live.Get("ad:ad", "pic:pictures"); ok {
		ad["pic:pictures"] = pics
	} else {
		ad["pic:pictures"] = map[string]any{}
	}
	return stored
}
