package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

const searchJSON = `{
  "query": "optics",
  "page": 0,
  "nbPages": 3,
  "hits": [
    {"familyId": "101202", "objectID": "55001"},
    {"familyId": "101203", "objectID": "55002"},
    {"familyId": "", "objectID": "55003"}
  ]
}`

const familyJSON = `{
  "productFamily": {
    "attributes": [
      {"name": "Magnification", "value": "3-9x"},
      {"name": "Tube Diameter", "value": "1 in"}
    ],
    "blurbText": "A rugged riflescope.",
    "productType": "Riflescopes",
    "familyNumber": "101202",
    "brandInformation": {"brandName": "Leupold"},
    "images": [{"path": "101/202-main.jpg"}]
  },
  "products": [
    {
      "id": "55001",
      "name": "VX-Freedom 3-9x40",
      "sku": "174180",
      "upc": "030317022310",
      "status": "Available",
      "imagePath": "101/202-variant.jpg",
      "priceViewModel": {
        "listPriceAmount": "$ 1,299.99",
        "ourPriceAmount": "$299.99"
      }
    }
  ]
}`

func TestAPIFeedExtractListing(t *testing.T) {
	t.Parallel()

	page, err := NewAPIFeed().ExtractListing(catalog.RawResponse{
		URL:  "https://www.example.com/api/search?q=optics&page=0",
		Body: []byte(searchJSON),
	})
	require.NoError(t, err)

	require.Equal(t, "optics", page.Title)
	require.Equal(t, []string{
		"https://www.example.com/api/product/data?id=101202&pid=55001",
		"https://www.example.com/api/product/data?id=101203&pid=55002",
	}, page.ProductURLs)
	require.Equal(t, "https://www.example.com/api/search?page=1&q=optics", page.NextURL)
}

func TestAPIFeedExtractListingLastPage(t *testing.T) {
	t.Parallel()

	page, err := NewAPIFeed().ExtractListing(catalog.RawResponse{
		URL:  "https://www.example.com/api/search?q=optics&page=2",
		Body: []byte(`{"query":"optics","page":2,"nbPages":3,"hits":[]}`),
	})
	require.NoError(t, err)
	require.Empty(t, page.ProductURLs)
	require.Empty(t, page.NextURL)
}

func TestAPIFeedExtractProduct(t *testing.T) {
	t.Parallel()

	rec, err := NewAPIFeed().ExtractProduct(catalog.RawResponse{
		URL:        "https://www.example.com/api/product/data?id=101202&pid=55001",
		StatusCode: 200,
		Body:       []byte(familyJSON),
	})
	require.NoError(t, err)
	require.NoError(t, rec.Validate())

	require.Equal(t, "VX-Freedom 3-9x40", rec.Title)
	require.Equal(t, 1, rec.Availability)
	require.Equal(t, "174180", *rec.SKU)
	require.Equal(t, "030317022310", *rec.UPC)
	require.Equal(t, "Leupold", *rec.Brand)
	require.Equal(t, "Riflescopes", *rec.Category)
	require.Equal(t, "A rugged riflescope.", *rec.Description)
	require.Equal(t, "3-9x", rec.Features["Magnification"])
	require.InDelta(t, 1299.99, *rec.Price, 0.001)
	require.InDelta(t, 299.99, *rec.SalePrice, 0.001)
	require.Equal(t, []string{
		"https://media.mwstatic.com/product-images/src/Primary/101/202-main.jpg",
		"https://media.mwstatic.com/product-images/src/Primary/101/202-variant.jpg",
	}, rec.Images)
}

func TestAPIFeedExtractProductGone(t *testing.T) {
	t.Parallel()

	_, err := NewAPIFeed().ExtractProduct(catalog.RawResponse{
		URL:        "https://www.example.com/api/product/data?id=1&pid=2",
		StatusCode: 404,
		Body:       []byte(`{"message":"not found"}`),
	})
	require.ErrorIs(t, err, catalog.ErrProductGone)
}

func TestAPIFeedExtractProductNoVariants(t *testing.T) {
	t.Parallel()

	_, err := NewAPIFeed().ExtractProduct(catalog.RawResponse{
		URL:        "https://www.example.com/api/product/data?id=1&pid=2",
		StatusCode: 200,
		Body:       []byte(`{"productFamily":{},"products":[]}`),
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, catalog.ErrProductGone)
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()

	e, err := reg.Lookup("storefront")
	require.NoError(t, err)
	require.IsType(t, &Storefront{}, e)

	e, err = reg.Lookup("apifeed")
	require.NoError(t, err)
	require.IsType(t, &APIFeed{}, e)

	_, err = reg.Lookup("bespoke")
	require.Error(t, err)
}
