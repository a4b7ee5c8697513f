package types

// Product is one entry of the materialized product list produced by the
// search stage. Either Code or URL must be present for review analysis.
type Product struct {
	// Name is the marketplace display name.
	Name string `json:"item_name"`

	// Code is the opaque marketplace item code (e.g. "shop-a:10001518").
	Code string `json:"item_code"`

	// URL is the canonical product page URL.
	URL string `json:"item_url"`

	// Price is the listed price in the marketplace currency.
	Price int `json:"item_price"`

	// ReviewCount and ReviewAverage come from the search API when available.
	ReviewCount   int     `json:"review_count"`
	ReviewAverage float64 `json:"review_average"`
}

// HasReference reports whether the product carries at least one usable
// reference for identifier resolution.
func (p *Product) HasReference() bool {
	return p.Code != "" || p.URL != ""
}

// ItemID is a canonical item identifier within the review feed's addressing
// scheme: shop id and item id joined by a single underscore, never containing
// raw path or colon separators.
type ItemID string
