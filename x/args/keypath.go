package args

// pathBuffer builds a dotted argument path as decoding descends into
// nested messages. push appends one segment and returns a restore
// function that truncates the buffer back to its pre-push length; callers
// defer it so the prefix unwinds on every exit path, errors included.
type pathBuffer struct {
	buf []byte
}

func newPathBuffer() pathBuffer {
	return pathBuffer{buf: make([]byte, 0, 64)}
}

func (b *pathBuffer) push(segment string) func() {
	old := len(b.buf)
	if old > 0 {
		b.buf = append(b.buf, '.')
	}
	b.buf = append(b.buf, segment...)
	return func() {
		b.buf = b.buf[:old]
	}
}

// String copies the current path, so the result stays valid after the
// buffer is unwound.
func (b *pathBuffer) String() string {
	return string(b.buf)
}
