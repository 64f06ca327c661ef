package extract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// APIFeed parses sources that expose a JSON product API: search pages
// return paged hit lists carrying family and object ids, and the product
// endpoint returns a family document with its variants.
type APIFeed struct{}

// NewAPIFeed constructs the JSON API adapter.
func NewAPIFeed() *APIFeed { return &APIFeed{} }

type searchResponse struct {
	Query   string      `json:"query"`
	Page    int         `json:"page"`
	NbPages int         `json:"nbPages"`
	Hits    []searchHit `json:"hits"`
}

type searchHit struct {
	FamilyID string `json:"familyId"`
	ObjectID string `json:"objectID"`
}

type familyResponse struct {
	ProductFamily struct {
		Attributes []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"attributes"`
		BlurbText        string `json:"blurbText"`
		ProductType      string `json:"productType"`
		FamilyNumber     string `json:"familyNumber"`
		BrandInformation struct {
			BrandName string `json:"brandName"`
		} `json:"brandInformation"`
		Images []struct {
			Path string `json:"path"`
		} `json:"images"`
	} `json:"productFamily"`
	Products []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		SKU            string `json:"sku"`
		UPC            string `json:"upc"`
		Status         string `json:"status"`
		ImagePath      string `json:"imagePath"`
		PriceViewModel *struct {
			ListPriceAmount string `json:"listPriceAmount"`
			OurPriceAmount  string `json:"ourPriceAmount"`
		} `json:"priceViewModel"`
	} `json:"products"`
}

const (
	apiFeedProductEndpoint = "/api/product/data?id=%s&pid=%s"
	apiFeedImageBase       = "https://media.mwstatic.com/product-images/src/Primary/"
)

// ExtractListing reads one page of search hits and turns each hit into a
// product API URL, relative to the search URL's host. NextURL advances
// the page query parameter until the last page is reached.
func (a *APIFeed) ExtractListing(raw catalog.RawResponse) (catalog.ListingPage, error) {
	var resp searchResponse
	if err := json.Unmarshal(raw.Body, &resp); err != nil {
		return catalog.ListingPage{}, fmt.Errorf("decoding search page %s: %w", raw.URL, err)
	}

	page := catalog.ListingPage{Title: resp.Query}
	for _, hit := range resp.Hits {
		if hit.FamilyID == "" || hit.ObjectID == "" {
			continue
		}
		page.ProductURLs = append(page.ProductURLs,
			apiOrigin(raw.URL)+fmt.Sprintf(apiFeedProductEndpoint, hit.FamilyID, hit.ObjectID))
	}
	if resp.Page+1 < resp.NbPages {
		page.NextURL = withPageParam(raw.URL, resp.Page+1)
	}
	return page, nil
}

// ExtractProduct decodes a product family document. API sources report
// removed products with a plain 404 instead of a tombstone body.
func (a *APIFeed) ExtractProduct(raw catalog.RawResponse) (catalog.ProductRecord, error) {
	if raw.StatusCode == 404 {
		return catalog.ProductRecord{}, fmt.Errorf("%s: %w", raw.URL, catalog.ErrProductGone)
	}

	var resp familyResponse
	if err := json.Unmarshal(raw.Body, &resp); err != nil {
		return catalog.ProductRecord{}, fmt.Errorf("decoding product %s: %w", raw.URL, err)
	}
	if len(resp.Products) == 0 {
		return catalog.ProductRecord{}, fmt.Errorf("product %s: family document has no variants", raw.URL)
	}
	variant := resp.Products[0]
	family := resp.ProductFamily

	rec := catalog.ProductRecord{
		Title:      variant.Name,
		ProductURL: raw.URL,
	}
	if variant.Status == "Available" {
		rec.Availability = 1
	}
	if variant.SKU != "" {
		rec.SKU = catalog.String(variant.SKU)
	}
	if variant.UPC != "" {
		rec.UPC = catalog.String(variant.UPC)
	}
	if family.BrandInformation.BrandName != "" {
		rec.Brand = catalog.String(family.BrandInformation.BrandName)
	}
	if family.BlurbText != "" {
		rec.Description = catalog.String(family.BlurbText)
	}
	if family.ProductType != "" {
		rec.Category = catalog.String(family.ProductType)
	}
	if len(family.Attributes) > 0 {
		rec.Features = make(map[string]string, len(family.Attributes))
		for _, attr := range family.Attributes {
			rec.Features[attr.Name] = attr.Value
		}
	}
	for _, img := range family.Images {
		rec.Images = append(rec.Images, apiFeedImageBase+img.Path)
	}
	if variant.ImagePath != "" {
		rec.Images = append(rec.Images, apiFeedImageBase+variant.ImagePath)
	}
	if variant.PriceViewModel != nil {
		rec.Price = parseMoney(variant.PriceViewModel.ListPriceAmount)
		rec.SalePrice = parseMoney(variant.PriceViewModel.OurPriceAmount)
	}
	return rec, nil
}

var moneyPattern = regexp.MustCompile(`\$\s*([\d,]+(\.\d+)?)`)

// parseMoney pulls the amount out of a rendered money string such as
// "$ 1,299.99".
func parseMoney(s string) *float64 {
	m := moneyPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return catalog.Float(v)
}

// apiOrigin reduces a URL to scheme://host, for building sibling API
// endpoints.
func apiOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// withPageParam rewrites the page query parameter on a search URL.
func withPageParam(rawURL string, page int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
