package httpclient

import (
	"context"
	"errors"
	"io"
)

// plainChunkSize bounds one decoded event. Backends that stream raw text
// flush small fragments, so reads rarely fill the buffer.
const plainChunkSize = 4 * 1024

// NewPlainTextDecoder creates a decoder for backends that stream raw text
// fragments without SSE framing. Every read chunk becomes one StreamEvent.
func NewPlainTextDecoder(ctx context.Context, rc io.ReadCloser) StreamDecoder {
	return &plainTextDecoder{
		ctx: ctx,
		rc:  rc,
		buf: make([]byte, plainChunkSize),
	}
}

var _ StreamDecoder = (*plainTextDecoder)(nil)

//nolint:containedctx // Checked.
type plainTextDecoder struct {
	ctx context.Context
	rc  io.ReadCloser
	buf []byte

	current *StreamEvent
	err     error

	closed   bool
	closeErr error
}

func (s *plainTextDecoder) Next() bool {
	if s.err != nil || s.closed {
		return false
	}

	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		_ = s.Close()

		return false
	default:
	}

	for {
		n, err := s.rc.Read(s.buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, s.buf[:n])
			s.current = &StreamEvent{Data: data}

			return true
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}

			_ = s.Close()

			return false
		}
	}
}

func (s *plainTextDecoder) Current() *StreamEvent {
	return s.current
}

func (s *plainTextDecoder) Err() error {
	return s.err
}

func (s *plainTextDecoder) Close() error {
	if s.closed {
		return s.closeErr
	}

	s.closed = true

	if s.rc != nil {
		s.closeErr = s.rc.Close()
	}

	return s.closeErr
}

func init() {
	RegisterDecoder("text/plain", NewPlainTextDecoder)
	RegisterDecoder("text/plain; charset=utf-8", NewPlainTextDecoder)
	RegisterDecoder("application/octet-stream", NewPlainTextDecoder)
}
