package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// Storefront parses Magento-style storefront HTML: a listing grid of
// product tiles with rel=next pagination, and product pages carrying a
// spec table, a price box, and a media gallery.
type Storefront struct{}

// NewStorefront constructs the HTML storefront adapter.
func NewStorefront() *Storefront { return &Storefront{} }

// ExtractListing pulls the product URLs off a category page. Pagination
// comes from the head's rel=next link; some themes only render a next
// button in the pager, so that is the fallback.
func (s *Storefront) ExtractListing(raw catalog.RawResponse) (catalog.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return catalog.ListingPage{}, fmt.Errorf("parsing listing %s: %w", raw.URL, err)
	}

	page := catalog.ListingPage{
		Title: strings.TrimSpace(doc.Find("h1.page-title").First().Text()),
	}

	seen := make(map[string]struct{})
	doc.Find("ol.product-items li a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		page.ProductURLs = append(page.ProductURLs, href)
	})

	if next, ok := doc.Find(`head link[rel="next"]`).Attr("href"); ok {
		page.NextURL = next
	} else if next, ok := doc.Find(`div.pages div.pages__actions a[title="Next"]`).Attr("href"); ok {
		page.NextURL = next
	}
	return page, nil
}

// ExtractProduct parses a product detail page. Storefronts serve their
// not-found page with a 200, so gone products are detected from the
// noRoute container rather than the status code.
func (s *Storefront) ExtractProduct(raw catalog.RawResponse) (catalog.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return catalog.ProductRecord{}, fmt.Errorf("parsing product %s: %w", raw.URL, err)
	}
	if doc.Find("main#maincontent div.noRoute-container").Length() > 0 {
		return catalog.ProductRecord{}, fmt.Errorf("%s: %w", raw.URL, catalog.ErrProductGone)
	}

	rec := catalog.ProductRecord{
		ProductURL: raw.URL,
		Title:      strings.TrimSpace(doc.Find("h1.page-title").First().Text()),
	}

	if strings.TrimSpace(doc.Find("div.product-info-stock-sku").First().Text()) == "In stock" {
		rec.Availability = 1
	}

	priceBox := doc.Find("div.product-info-price").First()
	rec.Price = parsePrice(priceBox.Find(`span[data-price-type="oldPrice"]`).First())
	rec.SalePrice = parsePrice(priceBox.Find(`span[data-price-type="finalPrice"]`).First())
	if rec.Price == nil {
		// Single-price products render only the final price.
		rec.Price, rec.SalePrice = rec.SalePrice, nil
	}

	specs := extractSpecTable(doc)
	if len(specs) > 0 {
		rec.Features = specs
	}
	if v, ok := specs["SKU"]; ok {
		rec.SKU = catalog.String(v)
	}
	if v, ok := specs["UPC"]; ok {
		rec.UPC = catalog.String(v)
	}
	if v, ok := specs["Brand"]; ok {
		rec.Brand = catalog.String(v)
	}

	if category := breadcrumbCategory(doc); category != "" {
		rec.Category = catalog.String(category)
	}

	if desc := strings.TrimSpace(doc.Find(`div.product.attribute.description div.value`).First().Text()); desc != "" {
		rec.Description = catalog.String(desc)
	}

	doc.Find("div.product.media img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			rec.Images = append(rec.Images, src)
		}
	})

	return rec, nil
}

// parsePrice prefers the machine-readable data-price-amount attribute and
// falls back to the rendered text.
func parsePrice(sel *goquery.Selection) *float64 {
	if sel.Length() == 0 {
		return nil
	}
	raw, ok := sel.Attr("data-price-amount")
	if !ok {
		raw = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(sel.Text()))
	}
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return catalog.Float(v)
}

func extractSpecTable(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)
	doc.Find("table#product-attribute-specs-table tr").Each(func(_ int, tr *goquery.Selection) {
		key := strings.TrimSpace(tr.Find("th").First().Text())
		val := strings.TrimSpace(tr.Find("td").First().Text())
		if key != "" {
			specs[key] = val
		}
	})
	return specs
}

// breadcrumbCategory returns the deepest linked breadcrumb level, which
// names the category the product was filed under.
func breadcrumbCategory(doc *goquery.Document) string {
	var category string
	doc.Find("div.breadcrumbs ul.items li.item a").Each(func(_ int, a *goquery.Selection) {
		if text := strings.TrimSpace(a.Text()); text != "" {
			category = text
		}
	})
	return category
}
