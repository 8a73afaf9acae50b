package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endToEndFixture pairs a Product structured-data block and a real
// gallery with a spec table that only exists inside a recommendation
// block. The harvest must take the name and the full-size gallery shot
// and contribute nothing from the cross-sell table.
const endToEndFixture = `<html><head>
<title>Widget A | Example Store</title>
<script type="application/ld+json">
{"@type":"Product","name":"Widget A","description":"The Widget A is a dependable widget for daily use around the home.","brand":{"name":"Acme"}}
</script>
</head><body>
<main class="product-detail">
  <h1>Widget A</h1>
  <div class="product-gallery">
    <img src="/media/widget-500x500.jpg">
    <img src="/media/widget-thumb-50x50.jpg">
  </div>
</main>
<div class="related-products">
  <table>
    <tr><th>Weight Capacity</th><td>250 lbs</td></tr>
    <tr><th>Overall Width</th><td>20 in</td></tr>
    <tr><th>Material</th><td>Steel</td></tr>
  </table>
</div>
</body></html>`

func TestExtractEndToEnd(t *testing.T) {
	record, err := Extract(endToEndFixture, "https://example.com/products/widget-a", Options{MinImagePx: 200})
	require.NoError(t, err)

	assert.Equal(t, "Widget A", record.Name)
	assert.Equal(t, "Acme", record.Brand)
	require.Len(t, record.Images, 1)
	assert.Equal(t, "https://example.com/media/widget-500x500.jpg", record.Images[0].URL)
	assert.Empty(t, record.Specs, "recommendation-block table must contribute nothing")
}

func TestExtractSpecPrecedence(t *testing.T) {
	fixture := `<html><head>
	<script type="application/ld+json">
	{"@type":"Product","name":"P","description":"A long enough product description for the record.",
	 "additionalProperty":[{"name":"Weight Capacity","value":"350 lbs"}]}
	</script>
	<script type="application/json">
	{"product":{"attributes":[
	  {"name":"Weight Capacity","value":"340 lbs"},
	  {"name":"Overall Width","value":"25 in"}
	]}}
	</script>
	</head><body><main class="product-detail">
	<table>
	  <tr><th>Weight Capacity</th><td>330 lbs</td></tr>
	  <tr><th>Overall Width</th><td>24 in</td></tr>
	  <tr><th>Material</th><td>Steel</td></tr>
	</table>
	</main></body></html>`

	record, err := Extract(fixture, "https://example.com/p/1", Options{})
	require.NoError(t, err)

	assert.Equal(t, "350 lbs", record.Specs["weight_capacity"], "structured data wins")
	assert.Equal(t, "25 in", record.Specs["overall_width"], "script-json beats the table sweep")
	assert.Equal(t, "Steel", record.Specs["material"], "table sweep fills the rest")
}

func TestExtractInsufficientContent(t *testing.T) {
	fixture := `<html><body><div><span>42</span></div></body></html>`

	_, err := Extract(fixture, "https://example.com/p/1", Options{})
	assert.ErrorIs(t, err, ErrInsufficientContent)
}

func TestExtractNameFallbackChain(t *testing.T) {
	fixture := `<html><head>
	<title>Title Tag Name</title>
	<meta property="og:title" content="OG Name">
	</head><body><main><h1>H1 Name</h1>
	<p>A description paragraph long enough to count as usable content here.</p>
	</main></body></html>`

	record, err := Extract(fixture, "https://example.com/p/1", Options{})
	require.NoError(t, err)
	assert.Equal(t, "OG Name", record.Name, "og:title outranks h1 and title")
}

func TestExtractDescriptionFromMainScopeParagraph(t *testing.T) {
	fixture := `<html><body><main class="product-detail">
	<h1>Thing</h1>
	<p>tiny</p>
	<p>This considerably longer paragraph describes the product in enough detail to serve as its description.</p>
	</main></body></html>`

	record, err := Extract(fixture, "https://example.com/p/1", Options{})
	require.NoError(t, err)
	assert.Contains(t, record.Description, "considerably longer paragraph")
}

func TestExtractSkipHarvest(t *testing.T) {
	record, err := Extract(endToEndFixture, "https://example.com/products/widget-a", Options{SkipHarvest: true})
	require.NoError(t, err)

	assert.Equal(t, "Widget A", record.Name)
	assert.Empty(t, record.Images, "dom harvesters disabled")
	assert.Empty(t, record.Manuals)
}

func TestExtractDebugWarnings(t *testing.T) {
	fixture := `<html><head>
	<title>An extremely long product page title that keeps going well past the seventy character search preview limit</title>
	<script type="application/ld+json">{broken</script>
	</head><body><main>
	<h1>Warned Product</h1>
	<p>A paragraph long enough to pass the usable description threshold easily.</p>
	</main></body></html>`

	record, err := Extract(fixture, "https://example.com/p/1", Options{Debug: true})
	require.NoError(t, err)

	assert.Len(t, []rune(record.MetaTitle), 70)
	joined := ""
	for _, w := range record.Warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "json-ld block 0")
	assert.Contains(t, joined, "meta title exceeds")
	assert.Contains(t, joined, "no product images harvested")
}

func TestExtractMarkdownDescription(t *testing.T) {
	fixture := `<html><body><main class="product-detail">
	<h1>MD Product</h1>
	<p>This product has <strong>reinforced joints</strong> and a washable cover for easy cleaning at home.</p>
	</main></body></html>`

	record, err := Extract(fixture, "https://example.com/p/1", Options{Markdown: true})
	require.NoError(t, err)
	assert.Contains(t, record.Description, "**reinforced joints**")
}
