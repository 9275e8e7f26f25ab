// Package stream turns a sequence of opaque byte chunks into a monotonically
// growing text value. Chunk boundaries carry no alignment guarantee, so bytes
// of a UTF-8 sequence split across chunks are buffered until the sequence
// completes.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Source produces the byte chunks of one assistant reply. Next returns io.EOF
// on a clean end of stream; any other error interrupts the reply.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// InterruptedError reports a reply stream that ended abnormally. Partial
// holds whatever content had accumulated so the caller can persist it instead
// of losing the reply.
type InterruptedError struct {
	Partial string
	Err     error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *InterruptedError) Unwrap() error {
	return e.Err
}

// Ingest drains src, invoking onSnapshot with the cumulative content after
// each chunk that contributed text. Snapshots never shrink and never reorder.
// On a clean end of stream it returns the final content. On a source error or
// context cancellation it returns an *InterruptedError carrying the partial
// content. Ingest is one-shot; a new send gets a new source.
func Ingest(ctx context.Context, src Source, onSnapshot func(string)) (string, error) {
	defer src.Close()

	var (
		acc     strings.Builder
		pending []byte // bytes of an incomplete UTF-8 sequence
	)

	interrupted := func(err error) (string, error) {
		return acc.String(), &InterruptedError{Partial: acc.String(), Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}

		chunk, err := src.Next(ctx)
		if len(chunk) > 0 {
			pending = append(pending, chunk...)
			complete := completePrefix(pending)
			if complete > 0 {
				acc.Write(pending[:complete])
				pending = pending[complete:]
				if onSnapshot != nil {
					onSnapshot(acc.String())
				}
			}
		}
		if errors.Is(err, io.EOF) {
			// Whatever is left can never decode; drop it rather than emit
			// garbage at the tail of the reply.
			return acc.String(), nil
		}
		if err != nil {
			return interrupted(err)
		}
	}
}

// completePrefix returns the length of the longest prefix of b made entirely
// of complete UTF-8 sequences.
func completePrefix(b []byte) int {
	end := len(b)
	for end > 0 {
		r, size := utf8.DecodeLastRune(b[:end])
		if r != utf8.RuneError || size > 1 {
			return end
		}
		// A lone RuneError of size 1 at the tail may be the start of a
		// multi-byte sequence still in flight; hold it back.
		end--
		if len(b)-end >= utf8.UTFMax {
			// Too many trailing bytes to ever form one rune: the data is
			// simply invalid, pass it through as-is.
			return len(b)
		}
	}
	return 0
}
