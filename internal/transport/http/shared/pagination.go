package shared

import (
	"net/http"
	"strconv"
)

// PageParam reads the page query parameter, defaulting to 1. Garbage and
// non-positive values also fall back to 1.
func PageParam(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Envelope is the paginated collection shape: items under a caller-chosen key
// plus prev/next page URLs and the total count. prev is null on the first
// page, next is null on (or past) the last.
func Envelope(key string, items any, links *Links, collectionURL string, page, perPage, total int) map[string]any {
	var prev, next any
	if page > 1 {
		prev = links.Page(collectionURL, page-1)
	}
	if page*perPage < total {
		next = links.Page(collectionURL, page+1)
	}
	return map[string]any{
		key:     items,
		"prev":  prev,
		"next":  next,
		"count": total,
	}
}
