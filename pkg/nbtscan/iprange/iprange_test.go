package iprange

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleAddress(t *testing.T) {
	got, err := Parse("10.192.4.35")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.192.4.35")}, got)
}

func TestParse_DashRange(t *testing.T) {
	got, err := Parse("10.192.4.35-37")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("10.192.4.35"),
		netip.MustParseAddr("10.192.4.36"),
		netip.MustParseAddr("10.192.4.37"),
	}, got)
}

func TestParse_DashRangeSizes(t *testing.T) {
	tests := []struct {
		spec        string
		first, last string
		n           int
	}{
		{"192.168.1.1-1", "192.168.1.1", "192.168.1.1", 1},
		{"192.168.1.0-255", "192.168.1.0", "192.168.1.255", 256},
		{"192.168.1.100-200", "192.168.1.100", "192.168.1.200", 101},
		{" 172.16.0.5 - 9 ", "172.16.0.5", "172.16.0.9", 5},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Parse(tt.spec)
			require.NoError(t, err)
			require.Len(t, got, tt.n)
			assert.Equal(t, netip.MustParseAddr(tt.first), got[0])
			assert.Equal(t, netip.MustParseAddr(tt.last), got[len(got)-1])
		})
	}
}

func TestParse_DashRangeEndBeforeStart(t *testing.T) {
	got, err := Parse("10.0.0.50-10")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestParse_CIDRSkipsNetworkAndBroadcast(t *testing.T) {
	got, err := Parse("10.192.4.1/24")
	require.NoError(t, err)
	require.Len(t, got, 254)
	assert.Equal(t, netip.MustParseAddr("10.192.4.1"), got[0])
	assert.Equal(t, netip.MustParseAddr("10.192.4.254"), got[len(got)-1])
}

func TestParse_CIDRSizes(t *testing.T) {
	tests := []struct {
		spec string
		n    int
	}{
		{"192.168.1.0/29", 6},
		{"192.168.1.0/28", 14},
		{"192.168.1.0/27", 30},
		{"192.168.1.0/26", 62},
		{"192.168.1.77/24", 254},
		{"10.0.0.0/16", 65534},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Parse(tt.spec)
			require.NoError(t, err)
			assert.Len(t, got, tt.n)
		})
	}
}

func TestParse_CIDRLargeHostRange(t *testing.T) {
	got, err := Parse("10.192.4.2/15")
	require.NoError(t, err)
	require.Len(t, got, 131070)
	assert.Equal(t, MaxHosts, len(got))
	assert.Equal(t, netip.MustParseAddr("10.192.0.1"), got[0])
	assert.Equal(t, netip.MustParseAddr("10.193.255.254"), got[len(got)-1])
}

func TestParse_AscendingAndUnique(t *testing.T) {
	got, err := Parse("172.16.8.9/22")
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		require.Equal(t, -1, got[i-1].Compare(got[i]), "not strictly ascending at %d", i)
	}
}

func TestParse_Idempotent(t *testing.T) {
	for _, spec := range []string{"10.1.2.3", "10.1.2.3-40", "10.1.2.3/23"} {
		a, err := Parse(spec)
		require.NoError(t, err)
		b, err := Parse(spec)
		require.NoError(t, err)
		assert.Equal(t, a, b, spec)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		spec string
		want []error
	}{
		{"10.192.4.5/36", []error{ErrCIDRNumber}},
		{"10.192.4.5/14", []error{ErrCIDRNumber}},
		{"10.192.4.5/30", []error{ErrCIDRNumber}},
		{"10.192.4.5/0", []error{ErrCIDRNumber}},
		{"10.192.4.5/abc", []error{ErrCIDRNumber}},
		{"10.320.4.0/24", []error{ErrBaseIP, ErrIPRange}},
		{"10.192.4.256", []error{ErrBaseIP, ErrIPRange}},
		{"256.1.1.1-3", []error{ErrBaseIP, ErrIPRange}},
		{"10.192.4.1-256", []error{ErrIPRange}},
		{"10.192.4.1-x", []error{ErrBaseIP}},
		{"invalid", []error{ErrBaseIP}},
		{"", []error{ErrBaseIP}},
		{"10.192.4", []error{ErrBaseIP}},
		{"not-an-ip", []error{ErrBaseIP}},
		{"::1", []error{ErrBaseIP}},
		{"fe80::/64", []error{ErrBaseIP}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Parse(tt.spec)
			require.Error(t, err)
			assert.Nil(t, got)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.spec, perr.Spec)
		})
	}
}

func TestParse_CIDRErrorIsNotBaseIPError(t *testing.T) {
	_, err := Parse("10.192.4.5/36")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBaseIP)
	assert.NotErrorIs(t, err, ErrIPRange)
}

func TestParseError_Message(t *testing.T) {
	_, err := Parse("10.192.4.5/36")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"10.192.4.5/36"`)
	assert.Contains(t, err.Error(), "/36")
}

func BenchmarkParse_CIDR16(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Parse("10.0.0.0/16")
	}
}
