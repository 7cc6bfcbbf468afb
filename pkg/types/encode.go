package types

import (
	"encoding/binary"
	"math"
)

// Width returns the fixed on-disk byte width of a value of the given
// DataType. varcharLength is only consulted for Varchar and is ignored
// otherwise (Date has its own fixed width).
func Width(dt DataType, varcharLength int) int {
	switch dt {
	case Int:
		return 4
	case Float:
		return 4
	case Bool:
		return 1
	case Varchar:
		return varcharLength
	case Date:
		return DateWidth
	case Point:
		return 8
	default:
		return 0
	}
}

// Encode writes v's fixed-width representation into buf, which must be
// exactly Width(dt, varcharLength) bytes long.
func Encode(buf []byte, dt DataType, v Value, varcharLength int) {
	switch dt {
	case Int:
		binary.LittleEndian.PutUint32(buf, uint32(v.I))
	case Float:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.F))
	case Bool:
		if v.B {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case Varchar:
		encodePaddedString(buf, v.S)
	case Date:
		encodePaddedString(buf, v.S)
	case Point:
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
	}
}

// Decode reads a Value of the given DataType out of buf.
func Decode(buf []byte, dt DataType) Value {
	switch dt {
	case Int:
		return NewInt(int32(binary.LittleEndian.Uint32(buf)))
	case Float:
		return NewFloat(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case Bool:
		return NewBool(buf[0] != 0)
	case Varchar:
		return NewVarchar(decodePaddedString(buf))
	case Date:
		return NewVarchar(decodePaddedString(buf))
	case Point:
		x := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
		return NewPoint(x, y)
	default:
		return Value{}
	}
}

func encodePaddedString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func decodePaddedString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// EncodeKey writes key's fixed-width representation into buf, the same
// layout Encode uses, but taking a Comparable key directly (used by the
// index packages, which work in terms of keys rather than full Values).
func EncodeKey(buf []byte, dt DataType, key Comparable) {
	switch dt {
	case Int:
		EncodeI32(buf, int32(key.(IntKey)))
	case Float:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(key.(FloatKey))))
	case Bool:
		if bool(key.(BoolKey)) {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case Varchar:
		encodePaddedString(buf, string(key.(VarcharKey)))
	case Date:
		encodePaddedString(buf, string(key.(DateKey)))
	case Point:
		p := key.(PointKey)
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Y))
	}
}

// DecodeKey is EncodeKey's inverse, returning the concrete key type
// (IntKey, FloatKey, VarcharKey, DateKey, BoolKey or PointKey) for dt.
func DecodeKey(buf []byte, dt DataType) Comparable {
	switch dt {
	case Int:
		return IntKey(DecodeI32(buf))
	case Float:
		return FloatKey(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case Bool:
		return BoolKey(buf[0] != 0)
	case Varchar:
		return VarcharKey(decodePaddedString(buf))
	case Date:
		return DateKey(decodePaddedString(buf))
	case Point:
		x := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
		return PointKey{X: x, Y: y}
	default:
		return nil
	}
}

// EncodeI32 / DecodeI32 are used throughout the index packages for the
// fixed-width pointer/offset fields every on-disk node carries (slot
// pointers, child offsets, next-leaf links, ...).
func EncodeI32(buf []byte, v int32) {
	binary.LittleEndian.PutUint32(buf, uint32(v))
}

func DecodeI32(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf))
}

func EncodeI64(buf []byte, v int64) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}

func DecodeI64(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}
