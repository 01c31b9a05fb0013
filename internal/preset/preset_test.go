package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetKnown(t *testing.T) {
	p := Get("low-memory")
	assert.Equal(t, "low-memory", p.Name)
	assert.Equal(t, 64, p.CropSize)
	assert.Equal(t, 1, p.BatchSize)
	assert.Equal(t, "serial", p.Engine)
}

func TestGetUnknownFallsBack(t *testing.T) {
	p := Get("gpu-farm")
	assert.Equal(t, "gpu-farm", p.Name)

	def := Get("default")
	assert.Equal(t, def.CropSize, p.CropSize)
	assert.Equal(t, def.BatchSize, p.BatchSize)
	assert.Equal(t, def.Engine, p.Engine)
}

func TestNamesResolve(t *testing.T) {
	names := Names()
	assert.NotEmpty(t, names)
	for _, n := range names {
		assert.Equal(t, n, Get(n).Name)
	}
}
