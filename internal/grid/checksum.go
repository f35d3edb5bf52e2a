package grid

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// checksumChunk is the number of cells hashed per Write.
const checksumChunk = 4096

// Checksum returns the xxh3 hash of cells encoded as little-endian float32.
//
// The encoding is fixed so checksums match across platforms.
func Checksum(cells []float32) uint64 {
	h := xxh3.New()
	buf := make([]byte, 4*min(len(cells), checksumChunk))

	for start := 0; start < len(cells); start += checksumChunk {
		chunk := cells[start:min(start+checksumChunk, len(cells))]
		for i, v := range chunk {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
		_, _ = h.Write(buf[:4*len(chunk)])
	}

	return h.Sum64()
}
