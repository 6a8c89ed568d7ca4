// Package framing reads length-prefixed binary records from trace
// streams. Each record is a big-endian uint32 length followed by the raw
// message body; the schema-driven decoding of the body happens elsewhere.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

const prefixSize = 4

var (
	ErrRecordTooLarge = errors.New("framing: record exceeds max size")
	ErrShortRecord    = errors.New("framing: data too short for record")
)

// Reader extracts records from byte slices and streams. Safe for
// concurrent use; scratch buffers are pooled.
type Reader struct {
	maxRecordSize int
	scratchPool   sync.Pool
}

// NewReader creates a reader that rejects records larger than
// maxRecordSize bytes.
func NewReader(maxRecordSize int) *Reader {
	return &Reader{
		maxRecordSize: maxRecordSize,
		scratchPool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 4096)
				return &buf
			},
		},
	}
}

// MaxRecordSize returns the configured record size limit.
func (r *Reader) MaxRecordSize() int {
	return r.maxRecordSize
}

// Split cuts one record off the front of data, returning the record body
// and the remaining bytes. The body aliases data.
func (r *Reader) Split(data []byte) (record, rest []byte, err error) {
	if len(data) < prefixSize {
		return nil, nil, ErrShortRecord
	}

	length := binary.BigEndian.Uint32(data[:prefixSize])
	if int(length) > r.maxRecordSize {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrRecordTooLarge, length, r.maxRecordSize)
	}
	if len(data) < prefixSize+int(length) {
		return nil, nil, fmt.Errorf("%w: prefix claims %d bytes, %d available",
			ErrShortRecord, length, len(data)-prefixSize)
	}

	return data[prefixSize : prefixSize+int(length)], data[prefixSize+int(length):], nil
}

// SplitAll cuts every record out of data. Returns an error when trailing
// bytes do not form a complete record.
func (r *Reader) SplitAll(data []byte) ([][]byte, error) {
	var records [][]byte
	for len(data) > 0 {
		record, rest, err := r.Split(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		data = rest
	}
	return records, nil
}

// ReadRecord reads one record from the stream. The returned slice is
// owned by the caller. io.EOF is returned unchanged at a clean record
// boundary.
func (r *Reader) ReadRecord(src io.Reader) ([]byte, error) {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(src, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("framing: read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if int(length) > r.maxRecordSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrRecordTooLarge, length, r.maxRecordSize)
	}

	scratchPtr := r.scratchPool.Get().(*[]byte)
	defer r.scratchPool.Put(scratchPtr)

	scratch := *scratchPtr
	var buf []byte
	if int(length) <= len(scratch) {
		buf = scratch[:length]
	} else {
		buf = make([]byte, length)
	}

	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, fmt.Errorf("framing: read record body: %w", err)
	}

	// Copy out: buf may go back to the pool.
	body := make([]byte, length)
	copy(body, buf)
	return body, nil
}

// AppendRecord frames body into buf for tests and tooling that produce
// record streams.
func AppendRecord(buf, body []byte) []byte {
	var prefix [prefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	buf = append(buf, prefix[:]...)
	return append(buf, body...)
}
