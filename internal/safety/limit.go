package safety

import (
	"errors"
	"io"
)

// ErrTooLarge indicates a stream produced more bytes than its configured limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// LimitReader returns a reader that yields at most limit bytes from r and then
// fails with ErrTooLarge if r still has data. A limit <= 0 disables the check.
func LimitReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		return r
	}
	return &limitedReader{r: r, remaining: limit}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Probe one byte to distinguish an exact-size stream from an oversized one.
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		if err == nil {
			return 0, nil
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
