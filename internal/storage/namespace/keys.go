package namespace

import (
	"fmt"
	"math"
	"time"
)

// Key layout inside a namespace database:
//
//	r/<id>                      record JSON
//	t/<inv-ts>/<id>             submission time index, newest first
//	s/<status>/<inv-ts>/<id>    status index, newest first
const (
	prefixRecord     = "r/"
	prefixTimeIndex  = "t/"
	prefixStatusIdx  = "s/"
	invertedTSLength = 16
)

func recordKey(id string) []byte {
	return []byte(prefixRecord + id)
}

// invertedTimestamp renders t so that later times sort first
func invertedTimestamp(t time.Time) string {
	return fmt.Sprintf("%016x", uint64(math.MaxInt64-t.UnixNano()))
}

func timeIndexKey(at time.Time, id string) []byte {
	return []byte(prefixTimeIndex + invertedTimestamp(at) + "/" + id)
}

func statusPrefix(status Status) string {
	return prefixStatusIdx + string(status) + "/"
}

func statusIndexKey(status Status, at time.Time, id string) []byte {
	return []byte(statusPrefix(status) + invertedTimestamp(at) + "/" + id)
}

// idFromIndexKey extracts the record id from a time or status index key
func idFromIndexKey(key []byte, prefix string) string {
	offset := len(prefix) + invertedTSLength + 1
	if len(key) <= offset {
		return ""
	}
	return string(key[offset:])
}

// upperBound returns the smallest key greater than every key with prefix
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
