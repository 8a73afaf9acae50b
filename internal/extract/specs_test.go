package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSpecKeyIdempotent(t *testing.T) {
	inputs := []string{
		"Weight Capacity",
		"Overall Width",
		"Colour",
		"Item Number",
		"HCPCS Code",
		"Some Unknown Key!",
		"weight_capacity",
		"already_canonical_key",
		"  Spaced   Out  ",
	}
	for _, in := range inputs {
		once := CanonicalizeSpecKey(in)
		twice := CanonicalizeSpecKey(once)
		assert.Equal(t, once, twice, "key %q must canonicalize idempotently", in)
	}
}

func TestCanonicalizeSpecKeySynonyms(t *testing.T) {
	cases := map[string]string{
		"Weight Capacity":     "weight_capacity",
		"Max Weight Capacity": "weight_capacity",
		"Colour":              "color",
		"Item Number":         "sku",
		"Model No.":           "sku",
		"Overall Width":       "overall_width",
		"Seat Width":          "seat_width",
		"Custom Field":        "custom_field",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalizeSpecKey(in))
	}
}

func TestNormalizeUnits(t *testing.T) {
	cases := map[string]string{
		"300 pounds":       "300 lbs",
		"22 inches":        "22 in",
		"10 kilograms":     "10 kg",
		"15   Inches wide": "15 in wide",
		"no units here":    "no units here",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeUnits(in))
	}
}

const specTabFixture = `<html><body><main class="product-detail">
<ul class="tabs">
  <li><a href="#tab-desc">Description</a></li>
  <li><a href="#tab-specs">Specifications</a></li>
</ul>
<div id="tab-desc"><p>About the product.</p></div>
<div id="tab-specs">
  <table>
    <tr><th>Weight Capacity</th><td>300 pounds</td></tr>
    <tr><th>Overall Width</th><td>22 inches</td></tr>
    <tr><th>Colour</th><td>Blue</td></tr>
  </table>
</div>
</main></body></html>`

func TestHarvestSpecsLabelledTab(t *testing.T) {
	d, err := NewDocument(specTabFixture, "https://example.com/products/drv-880")
	require.NoError(t, err)

	specs := HarvestSpecs(d)
	assert.Equal(t, "300 lbs", specs["weight_capacity"])
	assert.Equal(t, "22 in", specs["overall_width"])
	assert.Equal(t, "Blue", specs["color"])
}

const partsTableFixture = `<html><body><main>
<table>
  <tr><th>Qty</th><th>Part No.</th><th>Price</th></tr>
  <tr><td>1</td><td>A-100</td><td>$5</td></tr>
  <tr><td>2</td><td>A-200</td><td>$7</td></tr>
</table>
<dl>
  <dt>Material</dt><dd>Aluminum</dd>
  <dt>Warranty</dt><dd>Limited Warranty: 5 years</dd>
</dl>
</main></body></html>`

func TestHarvestSpecsSkipsPartsTables(t *testing.T) {
	d, err := NewDocument(partsTableFixture, "https://example.com/p/1")
	require.NoError(t, err)

	specs := HarvestSpecs(d)
	assert.Equal(t, "Aluminum", specs["material"])
	assert.NotContains(t, specs, "qty")
	assert.NotContains(t, specs, "a_100")
}

const recommendationSpecsFixture = `<html><body>
<main class="product-detail"><h1>Widget</h1></main>
<div class="related-products">
  <table>
    <tr><th>Weight Capacity</th><td>250 lbs</td></tr>
    <tr><th>Overall Width</th><td>20 in</td></tr>
    <tr><th>Material</th><td>Steel</td></tr>
  </table>
</div>
</body></html>`

func TestHarvestSpecsRejectsRecommendationBlocks(t *testing.T) {
	d, err := NewDocument(recommendationSpecsFixture, "https://example.com/p/2")
	require.NoError(t, err)

	specs := HarvestSpecs(d)
	assert.Empty(t, specs, "a spec table inside a recommendation block must contribute nothing")
}

func TestDecomposeDimensions(t *testing.T) {
	specs := map[string]string{
		"dimensions": `30" W x 20" D x 45" H`,
	}
	DecomposeDimensions(specs)
	assert.Equal(t, "30 in", specs["overall_width"])
	assert.Equal(t, "20 in", specs["overall_depth"])
	assert.Equal(t, "45 in", specs["overall_height"])

	// Existing split fields are never overwritten.
	specs = map[string]string{
		"dimensions":    "30 x 20 x 45 in",
		"overall_width": "31 in",
	}
	DecomposeDimensions(specs)
	assert.Equal(t, "31 in", specs["overall_width"])
	assert.Equal(t, "20 in", specs["overall_depth"])
}

func TestFilterPartsResidue(t *testing.T) {
	specs := map[string]string{
		"qty":             "4",
		"quantity":        "2",
		"weight_capacity": "300 lbs",
	}
	FilterPartsResidue(specs)
	assert.Equal(t, map[string]string{"weight_capacity": "300 lbs"}, specs)
}
