package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	c := NewFixed(start)
	assert.Equal(t, start, c.Now())

	c.Advance(24 * time.Hour)
	assert.Equal(t, start.AddDate(0, 0, 1), c.Now())

	later := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestSystemUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	c := NewSystem(loc)
	assert.Equal(t, loc, c.Now().Location())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
