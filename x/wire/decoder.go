// Package wire reads raw protobuf wire fields out of a byte span without
// any knowledge of the message schema. Each field is returned with its tag
// and typed accessors; choosing the accessor that matches the declared
// schema type is the caller's responsibility.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded (tag, value) unit from a message body. Varint and
// fixed-width payloads are held as raw bits; length-delimited payloads as
// a sub-slice of the input buffer.
type Field struct {
	Tag  uint32
	Type protowire.Type

	bits uint64
	data []byte
}

func (f Field) AsInt32() int32   { return int32(f.bits) }
func (f Field) AsInt64() int64   { return int64(f.bits) }
func (f Field) AsUint32() uint32 { return uint32(f.bits) }
func (f Field) AsUint64() uint64 { return f.bits }
func (f Field) AsSint32() int32  { return int32(protowire.DecodeZigZag(f.bits)) }
func (f Field) AsSint64() int64  { return protowire.DecodeZigZag(f.bits) }
func (f Field) AsBool() bool     { return f.bits != 0 }
func (f Field) AsDouble() float64 {
	return math.Float64frombits(f.bits)
}
func (f Field) AsFloat() float32 {
	return math.Float32frombits(uint32(f.bits))
}
func (f Field) AsString() string { return string(f.data) }
func (f Field) AsBytes() []byte  { return f.data }

// Decoder iterates the wire fields of a single encoded message. Usage
// follows the scanner pattern:
//
//	dec := wire.NewDecoder(data)
//	for f, ok := dec.Next(); ok; f, ok = dec.Next() {
//	    ...
//	}
//	if err := dec.Err(); err != nil { ... }
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder creates a decoder over data. The decoder keeps a reference
// to data; length-delimited field payloads alias it.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{buf: data}
}

// Next returns the next wire field. It returns ok=false at the end of the
// buffer or on a malformed field; Err distinguishes the two.
func (d *Decoder) Next() (Field, bool) {
	if d.err != nil || d.off >= len(d.buf) {
		return Field{}, false
	}

	rest := d.buf[d.off:]
	num, typ, n := protowire.ConsumeTag(rest)
	if n < 0 {
		d.err = fmt.Errorf("wire: invalid tag at offset %d: %w", d.off, protowire.ParseError(n))
		return Field{}, false
	}
	d.off += n
	rest = rest[n:]

	f := Field{Tag: uint32(num), Type: typ}

	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			d.err = d.fieldErr(num, protowire.ParseError(n))
			return Field{}, false
		}
		f.bits = v
		d.off += n
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(rest)
		if n < 0 {
			d.err = d.fieldErr(num, protowire.ParseError(n))
			return Field{}, false
		}
		f.bits = uint64(v)
		d.off += n
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(rest)
		if n < 0 {
			d.err = d.fieldErr(num, protowire.ParseError(n))
			return Field{}, false
		}
		f.bits = v
		d.off += n
	case protowire.BytesType:
		v, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			d.err = d.fieldErr(num, protowire.ParseError(n))
			return Field{}, false
		}
		f.data = v
		d.off += n
	case protowire.StartGroupType:
		// Groups are legacy; capture the raw group body so the caller can
		// skip it without losing framing.
		v, n := protowire.ConsumeGroup(num, rest)
		if n < 0 {
			d.err = d.fieldErr(num, protowire.ParseError(n))
			return Field{}, false
		}
		f.data = v
		d.off += n
	default:
		d.err = fmt.Errorf("wire: field %d has unknown wire type %d", num, typ)
		return Field{}, false
	}

	return f, true
}

// Err returns the first decode fault encountered, or nil when iteration
// ended at the buffer boundary.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) fieldErr(num protowire.Number, err error) error {
	return fmt.Errorf("wire: field %d at offset %d: %w", num, d.off, err)
}
