package rabbit

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	items := make([]string, 0, 137)
	for i := 0; i < 137; i++ {
		items = append(items, fmt.Sprintf("item-%03d", i))
	}

	page := paginate(items, PageRequest{Page: 2, PageSize: 50})
	require.Equal(t, 2, page.Page)
	require.Equal(t, 50, page.PageSize)
	require.Equal(t, 137, page.TotalItems)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 50)
	require.Equal(t, "item-050", page.Items[0])
	require.Equal(t, "item-099", page.Items[49])
}

func TestPaginateLastPartialPage(t *testing.T) {
	items := make([]string, 0, 137)
	for i := 0; i < 137; i++ {
		items = append(items, fmt.Sprintf("item-%03d", i))
	}

	page := paginate(items, PageRequest{Page: 3, PageSize: 50})
	require.Len(t, page.Items, 37)
	require.Equal(t, 137, page.TotalItems)
}

func TestPaginateBeyondEnd(t *testing.T) {
	items := []string{"a", "b", "c"}

	page := paginate(items, PageRequest{Page: 9, PageSize: 50})
	require.Empty(t, page.Items)
	require.Equal(t, 3, page.TotalItems)
	require.Equal(t, 1, page.TotalPages)
	require.Equal(t, 9, page.Page)
}

func TestPaginateEmpty(t *testing.T) {
	page := paginate([]string{}, PageRequest{Page: 1, PageSize: 50})
	require.Empty(t, page.Items)
	require.Equal(t, 0, page.TotalItems)
	require.Equal(t, 1, page.TotalPages)
}

func TestPageRequestNormalizeDefaults(t *testing.T) {
	req, err := PageRequest{Page: 0, PageSize: 0}.Normalize()
	require.NoError(t, err)
	require.Equal(t, 1, req.Page)
	require.Equal(t, DefaultPageSize, req.PageSize)
}

func TestPageRequestNormalizeRejectsOutOfBounds(t *testing.T) {
	for _, req := range []PageRequest{
		{Page: -3, PageSize: 50},
		{Page: 1, PageSize: -1},
		{Page: 1, PageSize: MaxPageSize + 1},
		{Page: 1, PageSize: 9999},
	} {
		_, err := req.Normalize()
		require.Error(t, err, "PageRequest %+v", req)
		require.Equal(t, KindInvalidInput, KindOf(err))
	}
}

func identity(s string) string { return s }

func TestFilterSubstring(t *testing.T) {
	items := []string{"orders.created", "orders.deleted", "payments.created"}

	kept, err := applyFilter(items, Filter{Name: "orders"}, identity, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"orders.created", "orders.deleted"}, kept)
}

func TestFilterSubstringCaseSensitive(t *testing.T) {
	items := []string{"Orders", "orders"}

	kept, err := applyFilter(items, Filter{Name: "orders"}, identity, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"orders"}, kept)
}

func TestFilterRegexUnanchored(t *testing.T) {
	items := []string{"orders.created", "orders.deleted", "payments.created"}

	kept, err := applyFilter(items, Filter{Name: `\.created$`, UseRegex: true}, identity, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"orders.created", "payments.created"}, kept)

	// An unanchored pattern matches anywhere in the name.
	kept, err = applyFilter(items, Filter{Name: "eated", UseRegex: true}, identity, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"orders.created", "payments.created"}, kept)
}

func TestFilterInvalidRegex(t *testing.T) {
	_, err := applyFilter([]string{"a"}, Filter{Name: "[unclosed", UseRegex: true}, identity, nil)
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, KindOf(err))
}

func TestFilterOversizedPattern(t *testing.T) {
	pattern := make([]byte, maxPatternLength+1)
	for i := range pattern {
		pattern[i] = 'a'
	}

	err := Filter{Name: string(pattern), UseRegex: true}.Validate()
	require.Error(t, err)
	require.Equal(t, KindInvalidInput, KindOf(err))
}

func TestFilterVhost(t *testing.T) {
	type item struct{ name, vhost string }
	items := []item{
		{"orders", "/"},
		{"orders", "tenant-a"},
		{"billing", "tenant-a"},
	}

	kept, err := applyFilter(items, Filter{Vhost: "tenant-a"},
		func(i item) string { return i.name },
		func(i item) string { return i.vhost },
	)
	require.NoError(t, err)
	require.Len(t, kept, 2)

	kept, err = applyFilter(items, Filter{Name: "orders", Vhost: "tenant-a"},
		func(i item) string { return i.name },
		func(i item) string { return i.vhost },
	)
	require.NoError(t, err)
	require.Equal(t, []item{{"orders", "tenant-a"}}, kept)
}

func TestFilterEmptyMatchesAll(t *testing.T) {
	items := []string{"a", "b"}

	kept, err := applyFilter(items, Filter{}, identity, nil)
	require.NoError(t, err)
	require.Equal(t, items, kept)
}

func TestRegexCacheReuse(t *testing.T) {
	cache := &regexCache{patterns: make(map[string]*regexp.Regexp), max: 2}

	re1, err := cache.get("abc")
	require.NoError(t, err)
	re2, err := cache.get("abc")
	require.NoError(t, err)
	if re1 != re2 {
		t.Error("expected cached pattern to be reused")
	}

	// Filling past max resets the cache rather than growing without bound.
	_, err = cache.get("def")
	require.NoError(t, err)
	_, err = cache.get("ghi")
	require.NoError(t, err)
	require.LessOrEqual(t, len(cache.patterns), 2)
}
