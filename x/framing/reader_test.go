package framing

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAll(t *testing.T) {
	t.Parallel()

	var stream []byte
	stream = AppendRecord(stream, []byte("first"))
	stream = AppendRecord(stream, nil)
	stream = AppendRecord(stream, []byte("third"))

	r := NewReader(1024)
	records, err := r.SplitAll(stream)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []byte("first"), records[0])
	assert.Empty(t, records[1])
	assert.Equal(t, []byte("third"), records[2])
}

func TestSplitTruncated(t *testing.T) {
	t.Parallel()

	stream := AppendRecord(nil, []byte("whole"))

	r := NewReader(1024)

	_, _, err := r.Split(stream[:2])
	assert.ErrorIs(t, err, ErrShortRecord)

	_, _, err = r.Split(stream[:len(stream)-1])
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestSplitTooLarge(t *testing.T) {
	t.Parallel()

	stream := AppendRecord(nil, bytes.Repeat([]byte{0xAA}, 100))

	r := NewReader(10)
	_, _, err := r.Split(stream)
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestReadRecordStream(t *testing.T) {
	t.Parallel()

	var stream []byte
	stream = AppendRecord(stream, []byte("one"))
	stream = AppendRecord(stream, []byte("two"))

	r := NewReader(1024)
	src := bytes.NewReader(stream)

	rec, err := r.ReadRecord(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), rec)

	rec, err = r.ReadRecord(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), rec)

	_, err = r.ReadRecord(src)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRecordTruncatedBody(t *testing.T) {
	t.Parallel()

	stream := AppendRecord(nil, []byte("partial"))

	r := NewReader(1024)
	_, err := r.ReadRecord(bytes.NewReader(stream[:6]))
	assert.Error(t, err)
}
