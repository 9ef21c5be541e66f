package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	got, err := httpx.ParseTrustedProxies(" 10.0.0.0/8, 192.168.1.7 ,, ::1 ")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "10.0.0.0/8", got[0].String())
	require.Equal(t, "192.168.1.7/32", got[1].String())
	require.Equal(t, "::1/128", got[2].String())

	empty, err := httpx.ParseTrustedProxies("")
	require.NoError(t, err)
	require.Empty(t, empty)

	for _, bad := range []string{"proxy.internal", "10.0.0.0/33", "300.1.1.1"} {
		_, err := httpx.ParseTrustedProxies(bad)
		require.Error(t, err, bad)
	}
}

func TestClientIP(t *testing.T) {
	trusted, err := httpx.ParseTrustedProxies("10.0.0.0/8")
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		xff     []string
		realIP  string
		trusted bool
		want    string
	}{
		{
			name:   "untrusted peer ignores headers",
			remote: "198.51.100.9:4000",
			xff:    []string{"203.0.113.5"},
			realIP: "203.0.113.6",
			want:   "198.51.100.9",
		},
		{
			name:    "trusted peer uses the forwarded client",
			remote:  "10.0.0.2:4000",
			xff:     []string{"203.0.113.5"},
			trusted: true,
			want:    "203.0.113.5",
		},
		{
			name:    "spoofed left-most hop is skipped",
			remote:  "10.0.0.2:4000",
			xff:     []string{"1.2.3.4, 203.0.113.5"},
			trusted: true,
			want:    "203.0.113.5",
		},
		{
			name:    "trusted hops are walked past",
			remote:  "10.0.0.2:4000",
			xff:     []string{"203.0.113.5, 10.0.0.7", "10.0.0.8"},
			trusted: true,
			want:    "203.0.113.5",
		},
		{
			name:    "malformed hop stops the walk",
			remote:  "10.0.0.2:4000",
			xff:     []string{"203.0.113.5, garbage, 10.0.0.7"},
			trusted: true,
			want:    "10.0.0.7",
		},
		{
			name:    "all hops trusted",
			remote:  "10.0.0.2:4000",
			xff:     []string{"10.0.0.9"},
			trusted: true,
			want:    "10.0.0.9",
		},
		{
			name:    "real ip when no forwarded for",
			remote:  "10.0.0.2:4000",
			realIP:  "203.0.113.6",
			trusted: true,
			want:    "203.0.113.6",
		},
		{
			name:    "trusted peer without headers",
			remote:  "10.0.0.2:4000",
			trusted: true,
			want:    "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			require.Equal(t, tt.want, httpx.ClientIP(req, trusted))
			if !tt.trusted {
				require.Equal(t, tt.want, httpx.ClientIP(req, nil))
			}
		})
	}
}
