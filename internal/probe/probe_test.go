package probe

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuntimeProbe_Read(t *testing.T) {
	usage, err := RuntimeProbe{}.Read(context.Background())
	require.NoError(t, err)
	require.Positive(t, usage.Used)
	require.GreaterOrEqual(t, usage.Total, usage.Used)
}

func TestProcessProbe_Read(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("process memory info is only checked on linux and darwin")
	}
	usage, err := NewProcessProbe().Read(context.Background())
	require.NoError(t, err)
	require.Positive(t, usage.Used)
}

func TestUnavailableProbe_Read(t *testing.T) {
	_, err := UnavailableProbe{}.Read(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewMemoryProbe(t *testing.T) {
	tests := []struct {
		source  string
		want    any
		wantErr bool
	}{
		{"", RuntimeProbe{}, false},
		{"runtime", RuntimeProbe{}, false},
		{"process", &ProcessProbe{}, false},
		{"none", UnavailableProbe{}, false},
		{"heapdump", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			p, err := NewMemoryProbe(tt.source)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.IsType(t, tt.want, p)
		})
	}
}

func TestGoroutineCounter_Count(t *testing.T) {
	n, err := GoroutineCounter{}.Count(context.Background())
	require.NoError(t, err)
	require.Positive(t, n)
}

func TestNewElementCounter(t *testing.T) {
	c, err := NewElementCounter("fds")
	require.NoError(t, err)
	require.IsType(t, &FDCounter{}, c)

	c, err = NewElementCounter("")
	require.NoError(t, err)
	require.IsType(t, GoroutineCounter{}, c)

	_, err = NewElementCounter("widgets")
	require.Error(t, err)
}
