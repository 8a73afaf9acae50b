package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptStateFixture = `<html><head>
<script type="application/json" id="app-state">
{
  "product": {
    "attributes": [
      {"name": "Weight Capacity", "value": "300 pounds"},
      {"label": "Overall Width", "val": "22 inches"}
    ],
    "media": {
      "gallery": ["https://example.com/media/state-shot-1.jpg", "/media/state-shot-2.jpg"],
      "video": "https://example.com/media/clip.mp4"
    },
    "documents": ["https://example.com/docs/state-manual.pdf"]
  },
  "relatedProducts": {
    "attributes": [{"name": "Color", "value": "Green"}],
    "images": ["https://example.com/media/related-shot.jpg"]
  }
}
</script>
<script>var notJSON = 1;</script>
</head><body></body></html>`

func TestScriptJSONSpecs(t *testing.T) {
	d, err := NewDocument(scriptStateFixture, "https://example.com/p/1")
	require.NoError(t, err)

	specs := ScriptJSONSpecs(d)
	assert.Equal(t, "300 lbs", specs["weight_capacity"])
	assert.Equal(t, "22 in", specs["overall_width"])
	assert.NotContains(t, specs, "color", "recommendation subtree must be pruned")
}

func TestScriptJSONImageURLs(t *testing.T) {
	d, err := NewDocument(scriptStateFixture, "https://example.com/p/1")
	require.NoError(t, err)

	urls := scriptJSONImageURLs(d)
	assert.Contains(t, urls, "https://example.com/media/state-shot-1.jpg")
	assert.Contains(t, urls, "/media/state-shot-2.jpg")
	assert.NotContains(t, urls, "https://example.com/media/clip.mp4")
	assert.NotContains(t, urls, "https://example.com/media/related-shot.jpg", "recommendation subtree must be pruned")
}

func TestScriptJSONDocumentURLs(t *testing.T) {
	d, err := NewDocument(scriptStateFixture, "https://example.com/p/1")
	require.NoError(t, err)

	urls := scriptJSONDocumentURLs(d)
	assert.Equal(t, []string{"https://example.com/docs/state-manual.pdf"}, urls)
}

func TestWalkDepthBounded(t *testing.T) {
	deep := any("leaf")
	for i := 0; i < 100; i++ {
		deep = map[string]any{"nested": deep}
	}
	var visited int
	walkValue(deep, nil, 0, scriptJSONVisitor{
		onString: func(path []string, s string) { visited++ },
	})
	assert.Zero(t, visited, "values beyond the depth bound are not visited")
}

func TestSpecPairFromObject(t *testing.T) {
	key, value, ok := specPairFromObject(map[string]any{"name": "Width", "value": "22 in"})
	require.True(t, ok)
	assert.Equal(t, "Width", key)
	assert.Equal(t, "22 in", value)

	_, _, ok = specPairFromObject(map[string]any{"name": "Width"})
	assert.False(t, ok)

	_, _, ok = specPairFromObject(map[string]any{"value": "22"})
	assert.False(t, ok)
}
