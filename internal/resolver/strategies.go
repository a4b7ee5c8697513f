package resolver

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
)

// bodyStrategy is one pure attempt at pulling the item id out of product
// page markup. Strategies are tried in declaration order.
type bodyStrategy struct {
	name    string
	extract func(body string) (string, bool)
}

var bodyStrategies = []bodyStrategy{
	{"initial_state", extractFromInitialState},
	{"item_info_sku", extractFromItemInfo},
	{"rat_item_id_literal", extractRatItemIDLiteral},
}

var (
	initialStateRe = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`)
	ratItemIDRe    = regexp.MustCompile(`ratItemId["']\s*:\s*["']([^"']+)["']`)
)

// initialState is the subset of the embedded page state the resolver cares
// about. The tracking parameter block carries the review feed's item id.
type initialState struct {
	Rat struct {
		GenericParameter struct {
			RatItemID string `json:"ratItemId"`
		} `json:"genericParameter"`
	} `json:"rat"`
}

// skuState is the alternate embedded shape exposing shop and item ids
// separately. The ids arrive as numbers on some rendering paths and as
// strings on others.
type skuState struct {
	API struct {
		Data struct {
			ItemInfoSku struct {
				ShopID json.Number `json:"shopId"`
				ItemID json.Number `json:"itemId"`
			} `json:"itemInfoSku"`
		} `json:"data"`
	} `json:"api"`
}

// extractFromInitialState reads the __INITIAL_STATE__ blob's
// rat.genericParameter.ratItemId field.
func extractFromInitialState(body string) (string, bool) {
	m := initialStateRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	var state initialState
	if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
		return "", false
	}
	if id := state.Rat.GenericParameter.RatItemID; id != "" {
		return id, true
	}
	return "", false
}

// extractFromItemInfo scans inline script elements for a JSON blob exposing
// separate shop and item ids, and joins them with the delimiter.
func extractFromItemInfo(body string) (string, bool) {
	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	for _, script := range htmlquery.Find(doc, "//script") {
		text := htmlquery.InnerText(script)
		if !strings.Contains(text, "itemInfoSku") {
			continue
		}
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			continue
		}
		var state skuState
		if err := json.Unmarshal([]byte(text[start:end+1]), &state); err != nil {
			continue
		}
		shop := state.API.Data.ItemInfoSku.ShopID.String()
		item := state.API.Data.ItemInfoSku.ItemID.String()
		if shop != "" && item != "" {
			return shop + Delimiter + item, true
		}
	}
	return "", false
}

// extractRatItemIDLiteral regex-scans the raw markup for a quoted
// ratItemId key/value pair, the last-ditch in-page strategy.
func extractRatItemIDLiteral(body string) (string, bool) {
	m := ratItemIDRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// urlPatterns are known product-URL shapes carrying an item identifier,
// tried in order against the raw URL string when page extraction fails.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/item/([^/?#]+)`),
	regexp.MustCompile(`[?&]itemCode=([^&#]+)`),
	regexp.MustCompile(`i\.rakuten\.co\.jp/[^/]+/([^/?#]+)`),
}

// idFromURL synthesizes an identifier from the product URL alone.
func idFromURL(rawURL string) (string, bool) {
	for _, re := range urlPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}
