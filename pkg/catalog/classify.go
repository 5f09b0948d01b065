package catalog

import (
	"regexp"
	"strings"
	"sync"
)

const (
	// DefaultCategory is used when no classification rule matches
	DefaultCategory = "Diğer Raporlar"
	// DefaultIcon is used when no classification rule matches
	DefaultIcon = "folder"
)

// builtinRules maps exact report names to their display classification.
// Names the authority provisions that are not listed here fall through to
// the slug-derived default.
var builtinRules = map[string]Classification{
	"Ciro":                {Route: "/ciro", Icon: "trending-up", Category: "Satış Raporları"},
	"Satış Detay":         {Route: "/satis-detay", Icon: "bar-chart", Category: "Satış Raporları"},
	"Bakiye":              {Route: "/bakiye", Icon: "wallet", Category: "Finans Raporları"},
	"Tahsilat":            {Route: "/tahsilat", Icon: "credit-card", Category: "Finans Raporları"},
	"Cari Hesap Ekstresi": {Route: "/cari-hesap-ekstresi", Icon: "file-text", Category: "Finans Raporları"},
	"Stok":                {Route: "/stok", Icon: "package", Category: "Stok Raporları"},
	"Stok Hareket":        {Route: "/stok-hareket", Icon: "repeat", Category: "Stok Raporları"},
}

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	invalidSlug    = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slugify lowercases the name, replaces whitespace runs with "-" and strips
// every character outside [a-z0-9-]. Deterministic and total.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRuns.ReplaceAllString(s, "-")
	return invalidSlug.ReplaceAllString(s, "")
}

// Rules holds the name-to-classification table. The table ships with
// built-in defaults and can be replaced wholesale by a rules file reload,
// so lookups take a read lock.
type Rules struct {
	mu     sync.RWMutex
	byName map[string]Classification
}

// NewRules creates a rule table seeded with the built-in classifications
func NewRules() *Rules {
	byName := make(map[string]Classification, len(builtinRules))
	for name, c := range builtinRules {
		byName[name] = c
	}
	return &Rules{byName: byName}
}

// Classify derives the display classification for a report. Exact-name
// lookup first; on a miss the category and icon default and the route is
// the slug of the name. Never fails.
func (r *Rules) Classify(report Report) Classification {
	r.mu.RLock()
	c, ok := r.byName[report.Name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	return Classification{
		Route:    "/" + Slugify(report.Name),
		Icon:     DefaultIcon,
		Category: DefaultCategory,
	}
}

// Replace swaps in a new rule table. Entries with an empty route get one
// derived from the name so a sparse rules file stays total.
func (r *Rules) Replace(rules map[string]Classification) {
	byName := make(map[string]Classification, len(rules))
	for name, c := range rules {
		if c.Route == "" {
			c.Route = "/" + Slugify(name)
		}
		if c.Icon == "" {
			c.Icon = DefaultIcon
		}
		if c.Category == "" {
			c.Category = DefaultCategory
		}
		byName[name] = c
	}
	r.mu.Lock()
	r.byName = byName
	r.mu.Unlock()
}

// Len returns the number of rules currently loaded
func (r *Rules) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
