// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "strconv"

// Page bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage normalizes a page request: Number below 1 becomes 1, Size below 1
// becomes DefaultPageSize and Size above MaxPageSize is capped.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size < 1:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// ParsePage builds a Page from raw query values. Missing or malformed values
// fall back to the defaults.
func ParsePage(number, size string) Page {
	return NewPage(atoiDefault(number, 1), atoiDefault(size, DefaultPageSize))
}

// Offset is the number of rows before the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages returns how many pages of p.Size hold total rows.
func (p Page) TotalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether a page follows p for total rows.
func (p Page) HasNext(total int64) bool { return p.Number < p.TotalPages(total) }

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
