package scull

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Config
	}{
		{"empty", "", DefaultConfig()},
		{"instances only", "num_instances: 4\n", Config{Instances: 4, Capacity: 1024, Prefix: "channel"}},
		{"all", "num_instances: 3\ncapacity_bytes: 64\nprefix: pipe\n", Config{Instances: 3, Capacity: 64, Prefix: "pipe"}},
		{"explicit zero", "capacity_bytes: 0\n", Config{Instances: 2, Capacity: 0, Prefix: "channel"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConfigUnknownField(t *testing.T) {
	_, err := ParseConfig([]byte("num_instances: 2\nbuffer_size: 10\n"))
	require.Error(t, err)
}

func TestParseConfigExplicitZeroInvalid(t *testing.T) {
	cfg, err := ParseConfig([]byte("num_instances: 0\n"))
	require.NoError(t, err)
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scull.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capacity_bytes: 32\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Capacity)
	require.NoError(t, cfg.Validate())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
