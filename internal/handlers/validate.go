package handlers

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"

	"admanager/internal/form"
)

// Validation limits for the posting form.
const (
	minTitleLen = 8
	maxTitleLen = 64
	minDescLen  = 10
)

var postalCodeRe = regexp.MustCompile(`^[ABCEGHJKLMNPRSTVXY]\d[A-Z] *\d[A-Z]\d$`)

// imageExts lists the image formats the upstream upload endpoint accepts.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// validatePostCore checks the fixed (non schema-driven) posting fields and
// returns the first error found.
func validatePostCore(title, description, postalCode string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Title is required."
	}
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return "Title must be between 8 and 64 characters."
	}
	if utf8.RuneCountInString(strings.TrimSpace(description)) < minDescLen {
		return "Description must be 10 or more characters."
	}
	postalCode = strings.ToUpper(strings.TrimSpace(postalCode))
	if postalCode == "" {
		return "Postal code is required."
	}
	if !postalCodeRe.MatchString(postalCode) {
		return "Invalid postal code."
	}
	return ""
}

// validatePrice checks the price against the selected price type. An amount is
// required only for a specified-amount listing.
func validatePrice(priceType, price string) string {
	price = strings.TrimSpace(price)
	if priceType != form.PriceTypeSpecified {
		return ""
	}
	if price == "" {
		return "Price is required."
	}
	amount, err := strconv.ParseFloat(price, 64)
	if err != nil || amount < 1 {
		return "Price must be a number of at least 1."
	}
	return ""
}

// validatePhone checks an optional phone number. Numbers without a country
// prefix are parsed as Canadian.
func validatePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	num, err := phonenumbers.Parse(phone, "CA")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "Invalid phone number."
	}
	return ""
}

// validateImageName checks an uploaded file name against the accepted image
// formats.
func validateImageName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if !imageExts[ext] {
		return "Must be an image file."
	}
	return ""
}

// validatePayloadName checks a manual post upload name.
func validatePayloadName(name string) string {
	if strings.ToLower(filepath.Ext(name)) != ".xml" {
		return "Must be an XML file."
	}
	return ""
}
