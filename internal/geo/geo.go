// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package geo resolves Canadian postal codes to coordinates using the
// GeoNames postal dataset. Canadian postal data is published at forward
// sortation area granularity (the first three characters), so lookups
// key on the FSA and average the coordinates of all rows within it.
package geo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// GeoNames postal TSV column positions.
const (
	colPostalCode = 1
	colLatitude   = 9
	colLongitude  = 10
	minColumns    = 11
)

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Index holds FSA-averaged coordinates loaded from a GeoNames dataset.
type Index struct {
	fsa map[string]Coordinates
}

// Empty returns an index with no data. Every lookup against it fails,
// which callers treat as a geocoding miss.
func Empty() *Index {
	return &Index{fsa: map[string]Coordinates{}}
}

// Len reports how many forward sortation areas the index covers.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.fsa)
}

// Load reads a GeoNames postal code TSV file (e.g. CA.txt) and builds
// the FSA index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo load: %w", err)
	}
	defer f.Close()
	return LoadReader(f)
}

// LoadReader builds an index from GeoNames TSV data. Rows with missing
// or unparseable coordinates are skipped.
func LoadReader(r io.Reader) (*Index, error) {
	type accum struct {
		lat, lon float64
		n        int
	}
	sums := make(map[string]*accum)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < minColumns {
			continue
		}
		fsa := normalizeFSA(fields[colPostalCode])
		if fsa == "" {
			continue
		}
		lat, err := strconv.ParseFloat(fields[colLatitude], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(fields[colLongitude], 64)
		if err != nil {
			continue
		}
		a, ok := sums[fsa]
		if !ok {
			a = &accum{}
			sums[fsa] = a
		}
		a.lat += lat
		a.lon += lon
		a.n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("geo read: %w", err)
	}

	idx := &Index{fsa: make(map[string]Coordinates, len(sums))}
	for fsa, a := range sums {
		idx.fsa[fsa] = Coordinates{
			Latitude:  a.lat / float64(a.n),
			Longitude: a.lon / float64(a.n),
		}
	}
	return idx, nil
}

// Lookup resolves a postal code to coordinates. Only the first three
// characters participate in the lookup, matching the dataset's regional
// granularity.
func (idx *Index) Lookup(postalCode string) (Coordinates, error) {
	if idx == nil || idx.fsa == nil {
		return Coordinates{}, fmt.Errorf("geo lookup: no dataset loaded")
	}
	fsa := normalizeFSA(postalCode)
	if len(fsa) < 3 {
		return Coordinates{}, fmt.Errorf("geo lookup: postal code %q too short", postalCode)
	}
	coords, ok := idx.fsa[fsa]
	if !ok {
		return Coordinates{}, fmt.Errorf("geo lookup: no data for %q", fsa)
	}
	return coords, nil
}

// normalizeFSA uppercases a postal code, strips spaces, and truncates it
// to the three-character forward sortation area.
func normalizeFSA(postalCode string) string {
	code := strings.ToUpper(strings.ReplaceAll(postalCode, " ", ""))
	if len(code) > 3 {
		code = code[:3]
	}
	return code
}
