package grid

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeebo/xxh3"
)

func TestChecksum(t *testing.T) {
	t.Run("matches a one-shot hash across chunk boundaries", func(t *testing.T) {
		cells := make([]float32, 3*checksumChunk+17)
		raw := make([]byte, 4*len(cells))
		for i := range cells {
			cells[i] = float32(i) * 0.5
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(cells[i]))
		}

		assert.Equal(t, xxh3.Hash(raw), Checksum(cells))
	})

	t.Run("sensitive to a single cell", func(t *testing.T) {
		a := []float32{1, 2, 3, 4}
		b := []float32{1, 2, 3, 4.0001}

		assert.NotEqual(t, Checksum(a), Checksum(b))
		assert.Equal(t, Checksum(a), Checksum([]float32{1, 2, 3, 4}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, xxh3.Hash(nil), Checksum(nil))
	})
}
