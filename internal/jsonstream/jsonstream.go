// Package jsonstream decodes a large top-level JSON array in bounded batches.
//
// The array is tokenized element by element; each element is captured as raw
// bytes and decoded into the target type separately, so one record of the
// wrong shape is skipped without losing the tokenizer's position. A payload the
// tokenizer itself cannot read (not an array, truncated, syntax error) is a
// stream-level failure and is returned as ErrMalformed.
//
// The tokenizer is encoding/json's Decoder, which rejects a missing
// separator between elements; goccy's streaming Token skips separators, so a
// spliced or truncated feed would read as complete. Elements are decoded with
// goccy.
package jsonstream

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/snapetech/iptvsync/internal/logging"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 100

// ErrMalformed marks a payload that is not a readable JSON array.
var ErrMalformed = errors.New("malformed json stream")

// Options tunes Batches.
type Options struct {
	BatchSize int
	// Logger receives one warning per skipped element. Nil uses the global logger.
	Logger *zerolog.Logger
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Logger == nil {
		l := logging.Component("jsonstream")
		o.Logger = &l
	}
}

// Batches reads a JSON array of objects from r and calls fn with every
// BatchSize decoded elements, plus once more for a final partial batch.
// fn runs synchronously; the next element is not read until it returns.
// Null and non-object elements are skipped, as are objects that fail to decode
// into T. The returned count is the number of decoded elements delivered to fn.
func Batches[T any](ctx context.Context, r io.Reader, opts Options, fn func([]T) error) (int, error) {
	opts.applyDefaults()
	log := opts.Logger

	dec := stdjson.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("%w: reading array start: %v", ErrMalformed, err)
	}
	if d, ok := tok.(stdjson.Delim); !ok || d != '[' {
		return 0, fmt.Errorf("%w: expected array, got %v", ErrMalformed, tok)
	}

	var (
		total   int
		index   int
		skipped int
		batch   = make([]T, 0, opts.BatchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = make([]T, 0, opts.BatchSize)
		return nil
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var raw stdjson.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return total, fmt.Errorf("%w: element %d: %v", ErrMalformed, index, err)
		}
		pos := index
		index++

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			skipped++
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			skipped++
			log.Warn().Err(err).Int("index", pos).Msg("skipping undecodable element")
			continue
		}
		batch = append(batch, item)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if _, err := dec.Token(); err != nil {
		return total, fmt.Errorf("%w: reading array end: %v", ErrMalformed, err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	log.Debug().Int("decoded", total).Int("skipped", skipped).Msg("array done")
	return total, nil
}
