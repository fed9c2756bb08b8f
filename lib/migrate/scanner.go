package migrate

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/ValentinKolb/redisimp/lib/store"
)

// DefaultBatchSize is the number of keys requested per scan call
const DefaultBatchSize = 500

// Pattern selects the keys to copy. At most one of Glob and Regex is set; the
// zero value matches every key.
type Pattern struct {
	// Glob is passed to the store's scan call and filtered server-side.
	Glob string
	// Regex is applied client-side to every scanned batch.
	Regex *regexp.Regexp
}

// ParsePattern parses a key filter. A filter wrapped in slashes ("/^user:/") is a
// regular expression matched against the beginning of every key name, anything
// else is a glob for the store. An empty filter matches every key.
func ParsePattern(filter string) (Pattern, error) {
	if len(filter) >= 2 && strings.HasPrefix(filter, "/") && strings.HasSuffix(filter, "/") {
		expr := filter[1 : len(filter)-1]
		re, err := regexp.Compile(`^(?:` + expr + `)`)
		if err != nil {
			return Pattern{}, fmt.Errorf("invalid key filter %s: %w", filter, err)
		}
		return Pattern{Regex: re}, nil
	}
	return Pattern{Glob: filter}, nil
}

// String returns the filter the pattern was parsed from.
func (p Pattern) String() string {
	if p.Regex != nil {
		// strip the anchor group added by ParsePattern
		expr := p.Regex.String()
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "^(?:"), ")")
		return "/" + expr + "/"
	}
	return p.Glob
}

// filter returns the keys matching the client-side part of the pattern.
func (p Pattern) filter(keys []string) []string {
	if p.Regex == nil {
		return keys
	}
	matched := keys[:0:0]
	for _, key := range keys {
		if p.Regex.MatchString(key) {
			matched = append(matched, key)
		}
	}
	return matched
}

// ScanKeys enumerates the keys of a source in batches of up to batchSize keys.
// The sequence is lazy: every batch is requested when the previous one has been
// consumed. Empty batches are skipped. If a scan call fails, the error is yielded
// once and the sequence ends.
//
// Keys can be reported more than once if the source is modified while scanning.
func ScanKeys(ctx context.Context, src store.Source, batchSize int, pattern Pattern) iter.Seq2[[]string, error] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return func(yield func([]string, error) bool) {
		var cursor uint64
		for {
			next, keys, err := src.Scan(ctx, cursor, pattern.Glob, int64(batchSize))
			if err != nil {
				yield(nil, fmt.Errorf("scan at cursor %d: %w", cursor, err))
				return
			}

			if keys = pattern.filter(keys); len(keys) > 0 {
				if !yield(keys, nil) {
					return
				}
			}

			if next == 0 {
				return
			}
			cursor = next
		}
	}
}
