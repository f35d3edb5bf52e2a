package natscomm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/jacobi/types"
)

// Wire format:
//
//	row:       len(row) little-endian float32 values, no header
//	reduction: one little-endian float64
//	barrier:   empty payload
//	abort:     "<rank>:<cause>"
//
// The receiver knows every length in advance, so payloads carry no header.

func encodeRow(data []float32) []byte {
	out := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}

	return out
}

func decodeRow(payload []byte, buf []float32) error {
	if len(payload) != 4*len(buf) {
		return fmt.Errorf("%w: got %d bytes, want %d values", types.ErrCommunication, len(payload), len(buf))
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
	}

	return nil
}

func encodeFloat64(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

func decodeFloat64(payload []byte) (float64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("%w: reduction payload of %d bytes", types.ErrCommunication, len(payload))
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(payload)), nil
}

func encodeAbort(rank int, cause error) []byte {
	return []byte(strconv.Itoa(rank) + ":" + cause.Error())
}

func decodeAbort(payload []byte) (int, string) {
	rankStr, cause, ok := strings.Cut(string(payload), ":")
	if !ok {
		return -1, string(payload)
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil {
		return -1, string(payload)
	}

	return rank, cause
}
