package rabbit

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const (
	// DefaultPageSize applies when a listing request omits pageSize.
	DefaultPageSize = 100
	// MaxPageSize caps pageSize on listing requests.
	MaxPageSize = 500
	// maxPatternLength caps the regex patterns accepted by name filters.
	// Anything longer is rejected before compilation.
	maxPatternLength = 256
)

// Filter narrows a listing by name and vhost. When UseRegex is set, Name is
// compiled as an unanchored RE2 pattern; otherwise it is a case-sensitive
// substring match. Vhost is always an exact match.
type Filter struct {
	Name     string
	UseRegex bool
	Vhost    string
}

// PageRequest selects a 1-based page of a filtered listing.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize fills in defaults for unset fields and rejects explicit values
// outside the valid bounds. Zero means the caller did not request a value.
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 {
		return p, InvalidInput("page must be at least 1")
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return p, InvalidInput(fmt.Sprintf("pageSize must be between 1 and %d", MaxPageSize))
	}
	return p, nil
}

// Page is one page of a filtered listing. TotalItems counts the items that
// matched the filter, not the items on this page and not the unfiltered total.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// regexCache memoizes compiled name patterns. Bounded: when full, the cache is
// reset wholesale rather than evicting piecemeal, which is enough for the
// handful of patterns a console instance sees.
type regexCache struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
	max      int
}

var nameRegexCache = &regexCache{patterns: make(map[string]*regexp.Regexp), max: 128}

func (c *regexCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if len(c.patterns) >= c.max {
		c.patterns = make(map[string]*regexp.Regexp)
	}
	c.patterns[pattern] = re
	return re, nil
}

// matcher returns a predicate over item names, or an InvalidInput error when
// the filter carries an invalid or oversized regex. A nil predicate means the
// filter matches everything.
func (f Filter) matcher() (func(name string) bool, error) {
	if f.Name == "" {
		return nil, nil
	}
	if !f.UseRegex {
		name := f.Name
		return func(candidate string) bool { return strings.Contains(candidate, name) }, nil
	}
	if len(f.Name) > maxPatternLength {
		return nil, InvalidInput("name pattern exceeds maximum length")
	}
	re, err := nameRegexCache.get(f.Name)
	if err != nil {
		return nil, InvalidInput("invalid name pattern: " + err.Error())
	}
	return re.MatchString, nil
}

// Validate checks the filter without applying it, so handlers can reject an
// invalid pattern before any upstream call is made.
func (f Filter) Validate() error {
	_, err := f.matcher()
	return err
}

// applyFilter keeps the items whose name (and vhost, when constrained) match.
func applyFilter[T any](items []T, f Filter, name func(T) string, vhost func(T) string) ([]T, error) {
	match, err := f.matcher()
	if err != nil {
		return nil, err
	}
	if match == nil && f.Vhost == "" {
		return items, nil
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if f.Vhost != "" && vhost != nil && vhost(item) != f.Vhost {
			continue
		}
		if match != nil && !match(name(item)) {
			continue
		}
		kept = append(kept, item)
	}
	return kept, nil
}

// paginate slices one page out of the filtered items. The request must
// already be normalized. A page beyond the end yields an empty item list with
// the totals intact.
func paginate[T any](items []T, req PageRequest) Page[T] {
	total := len(items)
	totalPages := (total + req.PageSize - 1) / req.PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (req.Page - 1) * req.PageSize
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}

	return Page[T]{
		Items:      items[start:end],
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
