package peerdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFormatBytes tests the compact byte rendering used by the peer
// table columns.
func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    uint64
		want string
	}{
		{n: 0, want: "0B"},
		{n: 512, want: "512B"},
		{n: 1024, want: "1.0KB"},
		{n: 1536, want: "1.5KB"},
		{n: 1 << 20, want: "1.0MB"},
		{n: 5<<20 + 1<<19, want: "5.5MB"},
		{n: 1 << 30, want: "1.00GB"},
		{n: 3 << 30, want: "3.00GB"},
	}

	for _, test := range tests {
		require.Equal(t, test.want, FormatBytes(test.n))
	}
}

// TestFormatAge tests that connection ages render as their two most
// significant non-zero units.
func TestFormatAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		age  time.Duration
		want string
	}{
		{age: -time.Second, want: "-"},
		{age: 0, want: "0s"},
		{age: 45 * time.Second, want: "45s"},
		{age: 2*time.Minute + 10*time.Second, want: "2m10s"},
		{age: 5 * time.Minute, want: "5m"},
		{age: time.Hour + 30*time.Minute, want: "1h30m"},
		{age: time.Hour + 12*time.Second, want: "1h12s"},
		{age: 2 * time.Hour, want: "2h"},
		{age: 72*time.Hour + 4*time.Hour, want: "3d4h"},
		{age: 24*time.Hour + 9*time.Minute, want: "1d9m"},
		{age: 24*time.Hour + 3*time.Second, want: "1d3s"},
		{age: 48 * time.Hour, want: "2d"},
	}

	for _, test := range tests {
		require.Equalf(
			t, test.want, FormatAge(test.age), "age %v", test.age,
		)
	}
}
