package rtree

import (
	"encoding/binary"
	"math"
)

func encodeI32(buf []byte, v int32) {
	binary.LittleEndian.PutUint32(buf, uint32(v))
}

func decodeI32(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf))
}

func encodeFloat(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func decodeFloat(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}
