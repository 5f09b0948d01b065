// Package catalog resolves the set of reports provisioned to a tenant and
// derives their display classification (route, icon, category).
//
// Reports are owned by the remote reporting authority; this package only
// reads them. Classification is pure derivation from the report name and is
// never persisted.
package catalog

// Report is a single provisioned report in a tenant's catalog
type Report struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Classification is the display metadata derived from a report name
type Classification struct {
	Route    string `json:"route"`
	Icon     string `json:"icon"`
	Category string `json:"category"`
}

// ReportWithAccess is a Report enriched with classification and the
// per-user access decision
type ReportWithAccess struct {
	Report
	Route     string `json:"route"`
	Icon      string `json:"icon"`
	Category  string `json:"category"`
	HasAccess bool   `json:"has_access"`
}
