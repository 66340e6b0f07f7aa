package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(1536*1024))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}

func TestFormatAge(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "3 seconds ago", FormatAge(now.Add(-3*time.Second), now))
}

func TestBar(t *testing.T) {
	tests := []struct {
		used, total, width int
		want               string
	}{
		{0, 10, 5, "[.....]"},
		{10, 10, 5, "[#####]"},
		{5, 10, 4, "[##..]"},
		{1, 1000, 4, "[#...]"},
		{3, 0, 3, "[...]"},
		{1, 1, 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bar(tt.used, tt.total, tt.width), "%d/%d w=%d", tt.used, tt.total, tt.width)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "0%", Percent(0, 0))
	assert.Equal(t, "25%", Percent(1, 4))
	assert.Equal(t, "100%", Percent(8, 8))
}
