package grocery

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/conciergehq/concierge/internal/tool"
)

const searchResultsHTML = `
<html><body>
<div data-qe-id="productCard">
  <div data-qe-id="productTitle"><span title="H-E-B Whole Milk">H-E-B Whole Milk</span></div>
  <button data-qe-id="addToCart"><span>Add to cart</span></button>
</div>
<div data-qe-id="productCard">
  <div data-qe-id="productTitle"><span title="H-E-B 2% Milk">H-E-B 2% Milk</span></div>
  <button data-qe-id="addToCart"><span>Out of stock</span></button>
</div>
<div data-qe-id="productCard">
  <div data-qe-id="productTitle"><span title="Oat Milk">Oat Milk</span></div>
  <button data-qe-id="addToCart"><span>Add to cart</span></button>
</div>
</body></html>`

type stubPage struct {
	html        string
	navigateErr error
	htmlErr     error
	visited     []string
	clicked     []string
	filled      map[string]string
}

func newStubPage(html string) *stubPage {
	return &stubPage{html: html, filled: map[string]string{}}
}

func (p *stubPage) Navigate(_ context.Context, url string) error {
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.visited = append(p.visited, url)
	return nil
}

func (p *stubPage) WaitVisible(context.Context, string) error { return nil }

func (p *stubPage) Click(_ context.Context, selector string) error {
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *stubPage) ClickXPath(_ context.Context, expression string) error {
	p.clicked = append(p.clicked, expression)
	return nil
}

func (p *stubPage) Fill(_ context.Context, selector, value string) error {
	p.filled[selector] = value
	return nil
}

func (p *stubPage) HTML(context.Context) (string, error) {
	if p.htmlErr != nil {
		return "", p.htmlErr
	}
	return p.html, nil
}

func TestFindProductFiltersOutOfStock(t *testing.T) {
	page := newStubPage(searchResultsHTML)
	results := FindProduct(context.Background(), page, "whole milk")
	want := []string{"H-E-B Whole Milk", "Oat Milk"}
	if !slices.Equal(results, want) {
		t.Fatalf("unexpected results\nwant %v\ngot  %v", want, results)
	}
	if len(page.visited) != 1 || !strings.Contains(page.visited[0], "q=whole%20milk") {
		t.Fatalf("unexpected search URL: %v", page.visited)
	}
}

func TestFindProductReturnsEmptyOnNavigationError(t *testing.T) {
	page := newStubPage("")
	page.navigateErr = errors.New("network error")
	results := FindProduct(context.Background(), page, "milk")
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty slice, got %v", results)
	}
}

func TestFindProductReturnsEmptyWithoutCards(t *testing.T) {
	page := newStubPage("<html><body><p>no results</p></body></html>")
	results := FindProduct(context.Background(), page, "milk")
	if len(results) != 0 {
		t.Fatalf("expected no products, got %v", results)
	}
}

func TestSetupSearchLocationDrivesStoreSelection(t *testing.T) {
	page := newStubPage("")
	if err := SetupSearchLocation(context.Background(), page, "78701"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if len(page.visited) != 1 || page.visited[0] != homeURL {
		t.Fatalf("expected storefront visit, got %v", page.visited)
	}
	if got := page.filled["#address-input"]; got != "78701" {
		t.Fatalf("expected zip fill, got %q", got)
	}
	if len(page.clicked) < 3 {
		t.Fatalf("expected store dialog, search, and store clicks, got %v", page.clicked)
	}
}

func TestSetupSearchLocationDefaultsZip(t *testing.T) {
	page := newStubPage("")
	if err := SetupSearchLocation(context.Background(), page, "  "); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if got := page.filled["#address-input"]; got != DefaultZipCode {
		t.Fatalf("expected default zip, got %q", got)
	}
}

func TestRegisterToolsDispatchesSearch(t *testing.T) {
	page := newStubPage(searchResultsHTML)
	reg := tool.NewRegistry()
	if err := RegisterTools(reg, page, "78209", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	out := reg.Dispatch(context.Background(), "find_product_at_HEB", json.RawMessage(`{"product_query":"milk"}`))
	var titles []string
	if err := json.Unmarshal([]byte(out), &titles); err != nil {
		t.Fatalf("decode dispatch output %q: %v", out, err)
	}
	if len(titles) != 2 {
		t.Fatalf("expected 2 in-stock products, got %v", titles)
	}
	// Store location setup happens once, then the search itself.
	if len(page.visited) < 2 {
		t.Fatalf("expected storefront setup plus search navigation, got %v", page.visited)
	}
}

func TestRegisterToolsWithoutBrowserSession(t *testing.T) {
	reg := tool.NewRegistry()
	if err := RegisterTools(reg, nil, "78209", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	out := reg.Dispatch(context.Background(), "find_product_at_HEB", json.RawMessage(`{"product_query":"milk"}`))
	var titles []string
	if err := json.Unmarshal([]byte(out), &titles); err != nil {
		t.Fatalf("decode dispatch output %q: %v", out, err)
	}
	if len(titles) != 0 {
		t.Fatalf("expected no products without a browser, got %v", titles)
	}
}
