package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeShopDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alpha", "alpha.myshopify.com"},
		{"alpha.myshopify.com", "alpha.myshopify.com"},
		{"Alpha.MyShopify.com", "alpha.myshopify.com"},
		{"https://alpha.myshopify.com", "alpha.myshopify.com"},
		{"https://alpha.myshopify.com/admin", "alpha.myshopify.com"},
		{"http://alpha", "alpha.myshopify.com"},
		{"  alpha  ", "alpha.myshopify.com"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeShopDomain(tt.in), "input %q", tt.in)
	}
}

func TestBareShopName(t *testing.T) {
	require.Equal(t, "alpha", BareShopName("alpha.myshopify.com"))
	require.Equal(t, "alpha", BareShopName("https://alpha.myshopify.com"))
	require.Equal(t, "alpha", BareShopName("alpha"))
}
