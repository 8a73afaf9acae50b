package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	base, _ := url.Parse("https://shop.example.com/products/widget-a")
	tests := []struct {
		name string
		href string
		want string
	}{
		{"relative path", "/images/widget.jpg", "https://shop.example.com/images/widget.jpg"},
		{"protocol relative", "//cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"absolute", "https://other.com/b.jpg", "https://other.com/b.jpg"},
		{"data uri dropped", "data:image/png;base64,xyz", ""},
		{"javascript dropped", "javascript:void(0)", ""},
		{"empty", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(base, tt.href))
		})
	}
}

func TestIsLikelyDangerousHost(t *testing.T) {
	dangerous := []string{
		"127.0.0.1", "localhost", "10.0.0.5", "192.168.1.1", "172.16.3.4",
		"169.254.169.254", "printer.local", "myhost.localhost", "::1",
		"fd12:3456::1", "fe80::1", "0.0.0.0",
	}
	for _, h := range dangerous {
		assert.True(t, IsLikelyDangerousHost(h), h)
	}
	safe := []string{"example.com", "8.8.8.8", "shop.example.co.uk", "172.32.0.1"}
	for _, h := range safe {
		assert.False(t, IsLikelyDangerousHost(h), h)
	}
}

func TestSameSiteOrCDN(t *testing.T) {
	assert.True(t, SameSiteOrCDN("www.example.com", "example.com"))
	assert.True(t, SameSiteOrCDN("example.com", "d111111abcdef8.cloudfront.net"))
	assert.True(t, SameSiteOrCDN("example.com", "cdn.shopify.com"))
	assert.False(t, SameSiteOrCDN("example.com", "tracker.adnetwork.io"))
}

func TestProductCode(t *testing.T) {
	assert.Equal(t, "drv-880", ProductCode("https://example.com/products/drv-880-rollator"))
	assert.Equal(t, "ab1234", ProductCode("https://example.com/item/ab1234.html"))
	assert.Equal(t, "", ProductCode("https://example.com/about-us"))
}

func TestPathKey(t *testing.T) {
	a := PathKey("https://Example.com/docs/manual.pdf?download=1#page=2")
	b := PathKey("https://example.com/docs/manual.pdf")
	assert.Equal(t, b, a)
}

func TestInferPixelSize(t *testing.T) {
	s := InferPixelSize("https://cdn.example.com/widget-500x500.jpg")
	assert.Equal(t, 500, s.W)
	assert.Equal(t, 500, s.H)

	s = InferPixelSize("https://cdn.example.com/widget.jpg?width=800")
	assert.Equal(t, 800, s.W)
	assert.Equal(t, 0, s.H)

	s = InferPixelSize("https://cdn.example.com/widget.jpg")
	assert.Equal(t, 0, s.W)
}
