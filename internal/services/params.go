package services

import (
	"math"
	"strings"
	"time"

	"github.com/bookingd/apiserver/internal/store"
)

const (
	minPageLimit = 5
	maxPageLimit = 100

	defaultBookingLimit = 50
	defaultUserLimit    = 20

	// maxPage keeps (page-1)*limit within int for every accepted limit.
	maxPage = math.MaxInt / maxPageLimit
)

// PageMeta describes the window returned by a paginated listing.
type PageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NormalizePage clamps page to [1, maxPage] and limit to [5, 100],
// substituting defaultLimit when limit is unset.
func NormalizePage(page, limit, defaultLimit int) store.Page {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < minPageLimit {
		limit = minPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return store.Page{Page: page, Limit: limit}
}

func pageMeta(p store.Page, total int) PageMeta {
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 timestamps as well as the date and
// datetime-local forms sent by HTML inputs. Zone-less values are UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
