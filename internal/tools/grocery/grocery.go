// Package grocery drives the H-E-B storefront: it pins the search session to
// a store near a zip code and looks up which products are in stock.
package grocery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/conciergehq/concierge/internal/logbook"
	"github.com/conciergehq/concierge/internal/tool"
)

const (
	homeURL      = "https://www.heb.com/"
	searchURLFmt = "https://www.heb.com/search?esc=true&q=%s"

	// DefaultZipCode pins the store search when the config omits one.
	DefaultZipCode = "78209"
)

// Page is the subset of browser page operations the grocery tools need.
// *browser.Page satisfies it; tests substitute a scripted stub.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	ClickXPath(ctx context.Context, expression string) error
	Fill(ctx context.Context, selector, value string) error
	HTML(ctx context.Context) (string, error)
}

// SetupSearchLocation configures the storefront session for the store
// nearest the zip code: open the change-store dialog, search the zip, and
// select the first store card.
func SetupSearchLocation(ctx context.Context, page Page, zipCode string) error {
	zip := strings.TrimSpace(zipCode)
	if zip == "" {
		zip = DefaultZipCode
	}
	if err := page.Navigate(ctx, homeURL); err != nil {
		return fmt.Errorf("grocery: open storefront: %w", err)
	}
	if err := page.Click(ctx, `[data-qe-id="header_change_store"]`); err != nil {
		return fmt.Errorf("grocery: open store dialog: %w", err)
	}
	if err := page.Fill(ctx, "#address-input", zip); err != nil {
		return fmt.Errorf("grocery: enter zip code: %w", err)
	}
	if err := page.ClickXPath(ctx, `//button[contains(., "Search")]`); err != nil {
		return fmt.Errorf("grocery: search stores: %w", err)
	}
	if err := page.WaitVisible(ctx, `p:contains(" stores near ")`); err != nil {
		// Some storefront variants render the result count differently;
		// the store cards are the authoritative signal.
		if waitErr := page.WaitVisible(ctx, `[data-qe-id="storeCard"]`); waitErr != nil {
			return fmt.Errorf("grocery: wait for store results: %w", err)
		}
	}
	if err := page.ClickXPath(ctx, `(//*[@data-qe-id="storeCard"])[1]//button[contains(., "Store")]`); err != nil {
		return fmt.Errorf("grocery: select store: %w", err)
	}
	return nil
}

// FindProduct searches the storefront for the query and returns the titles
// of in-stock products. Scraping failures return an empty slice so the
// executor model can move on rather than abort the plan.
func FindProduct(ctx context.Context, page Page, query string) []string {
	encoded := strings.ReplaceAll(query, " ", "%20")
	if err := page.Navigate(ctx, fmt.Sprintf(searchURLFmt, encoded)); err != nil {
		return []string{}
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return []string{}
	}
	titles, err := parseProductTitles(html)
	if err != nil {
		return []string{}
	}
	return titles
}

// parseProductTitles extracts in-stock product titles from search result HTML.
func parseProductTitles(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	results := []string{}
	doc.Find(`div[data-qe-id="productCard"]`).Each(func(_ int, card *goquery.Selection) {
		outOfStock := false
		card.Find(`button[data-qe-id="addToCart"] span`).Each(func(_ int, span *goquery.Selection) {
			if strings.Contains(span.Text(), "Out of stock") {
				outOfStock = true
			}
		})
		if outOfStock {
			return
		}
		title, ok := card.Find(`div[data-qe-id="productTitle"] span`).First().Attr("title")
		if ok && title != "" {
			results = append(results, title)
		}
	})
	return results, nil
}

type findProductArgs struct {
	ProductQuery string `json:"product_query"`
}

// RegisterTools installs the grocery functions into the executor registry.
// The page session is configured lazily on the first product search. With a
// nil page the tools still register, so commands that never start a browser
// can list them, but a dispatch reports no results instead of searching.
func RegisterTools(reg *tool.Registry, page Page, zipCode string, log *logbook.Logbook) error {
	var scoped *logbook.Scoped
	if log != nil {
		scoped = log.Scoped("grocery")
	}
	located := false
	find := tool.NewFunc(
		"find_product_at_HEB",
		"Search for available products at HEB grocery store's website. Returns the titles of in-stock products matching the search term.",
		tool.ObjectSchema(map[string]any{
			"product_query": tool.StringParam("Search term for the product"),
		}, "product_query"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var parsed findProductArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			if page == nil {
				scoped.Warn("no browser session, search %q returned nothing", parsed.ProductQuery)
				return []string{}, nil
			}
			if !located {
				if err := SetupSearchLocation(ctx, page, zipCode); err != nil {
					scoped.Warn("store setup failed: %v", err)
					return []string{}, nil
				}
				located = true
			}
			titles := FindProduct(ctx, page, parsed.ProductQuery)
			scoped.Info("search %q returned %d in-stock product(s)", parsed.ProductQuery, len(titles))
			return titles, nil
		},
	)
	return reg.Register(find)
}
