package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

const listingHTML = `<!DOCTYPE html>
<html>
<head>
  <link rel="next" href="https://shop.example.com/archery?p=2"/>
</head>
<body>
  <h1 class="page-title">Archery</h1>
  <ol class="product-items">
    <li><a href="https://shop.example.com/p/compound-bow">Compound Bow</a></li>
    <li><a href="https://shop.example.com/p/recurve-bow">Recurve Bow</a></li>
    <li><a href="https://shop.example.com/p/compound-bow">Compound Bow (again)</a></li>
  </ol>
</body>
</html>`

const productHTML = `<!DOCTYPE html>
<html>
<body>
<main id="maincontent">
  <div class="breadcrumbs"><ul class="items">
    <li class="item"><a href="/">Home</a></li>
    <li class="item"><a href="/archery">Archery</a></li>
    <li class="item product">Compound Bow</li>
  </ul></div>
  <h1 class="page-title">Compound Bow</h1>
  <div class="product-info-stock-sku">In stock</div>
  <div class="product-info-price">
    <span data-price-type="oldPrice" data-price-amount="599.99">$599.99</span>
    <span data-price-type="finalPrice" data-price-amount="499.99">$499.99</span>
  </div>
  <table id="product-attribute-specs-table">
    <tr><th>SKU</th><td>CB-1000</td></tr>
    <tr><th>UPC</th><td>012345678905</td></tr>
    <tr><th>Brand</th><td>Hoyt</td></tr>
    <tr><th>Draw Weight</th><td>40 lb</td></tr>
  </table>
  <div class="product media">
    <img src="https://cdn.example.com/bow-front.jpg"/>
    <img src="https://cdn.example.com/bow-side.jpg"/>
  </div>
  <div class="product attribute description"><div class="value">A forgiving compound bow.</div></div>
</main>
</body>
</html>`

const goneHTML = `<!DOCTYPE html>
<html><body>
<main id="maincontent">
  <div class="noRoute-container">The page you requested was not found.</div>
</main>
</body></html>`

func TestStorefrontExtractListing(t *testing.T) {
	t.Parallel()

	page, err := NewStorefront().ExtractListing(catalog.RawResponse{
		URL:  "https://shop.example.com/archery",
		Body: []byte(listingHTML),
	})
	require.NoError(t, err)

	require.Equal(t, "Archery", page.Title)
	require.Equal(t, []string{
		"https://shop.example.com/p/compound-bow",
		"https://shop.example.com/p/recurve-bow",
	}, page.ProductURLs)
	require.Equal(t, "https://shop.example.com/archery?p=2", page.NextURL)
}

func TestStorefrontExtractListingLastPage(t *testing.T) {
	t.Parallel()

	page, err := NewStorefront().ExtractListing(catalog.RawResponse{
		URL:  "https://shop.example.com/archery?p=9",
		Body: []byte(`<html><head></head><body><ol class="product-items"></ol></body></html>`),
	})
	require.NoError(t, err)
	require.Empty(t, page.ProductURLs)
	require.Empty(t, page.NextURL)
}

func TestStorefrontExtractProduct(t *testing.T) {
	t.Parallel()

	rec, err := NewStorefront().ExtractProduct(catalog.RawResponse{
		URL:  "https://shop.example.com/p/compound-bow",
		Body: []byte(productHTML),
	})
	require.NoError(t, err)
	require.NoError(t, rec.Validate())

	require.Equal(t, "Compound Bow", rec.Title)
	require.Equal(t, "https://shop.example.com/p/compound-bow", rec.ProductURL)
	require.Equal(t, 1, rec.Availability)
	require.NotNil(t, rec.Price)
	require.InDelta(t, 599.99, *rec.Price, 0.001)
	require.NotNil(t, rec.SalePrice)
	require.InDelta(t, 499.99, *rec.SalePrice, 0.001)
	require.Equal(t, "CB-1000", *rec.SKU)
	require.Equal(t, "012345678905", *rec.UPC)
	require.Equal(t, "Hoyt", *rec.Brand)
	require.Equal(t, "40 lb", rec.Features["Draw Weight"])
	require.Equal(t, "Archery", *rec.Category)
	require.Equal(t, "A forgiving compound bow.", *rec.Description)
	require.Equal(t, []string{
		"https://cdn.example.com/bow-front.jpg",
		"https://cdn.example.com/bow-side.jpg",
	}, rec.Images)
}

func TestStorefrontExtractProductSinglePrice(t *testing.T) {
	t.Parallel()

	body := `<html><body><main id="maincontent">
	<h1 class="page-title">Recurve Bow</h1>
	<div class="product-info-stock-sku">Out of stock</div>
	<div class="product-info-price">
	  <span data-price-type="finalPrice">$249.00</span>
	</div>
	</main></body></html>`

	rec, err := NewStorefront().ExtractProduct(catalog.RawResponse{
		URL:  "https://shop.example.com/p/recurve-bow",
		Body: []byte(body),
	})
	require.NoError(t, err)

	require.Equal(t, 0, rec.Availability)
	require.NotNil(t, rec.Price)
	require.InDelta(t, 249.00, *rec.Price, 0.001)
	require.Nil(t, rec.SalePrice)
	require.Nil(t, rec.SKU)
}

func TestStorefrontExtractProductGone(t *testing.T) {
	t.Parallel()

	_, err := NewStorefront().ExtractProduct(catalog.RawResponse{
		URL:  "https://shop.example.com/p/discontinued",
		Body: []byte(goneHTML),
	})
	require.ErrorIs(t, err, catalog.ErrProductGone)
}
