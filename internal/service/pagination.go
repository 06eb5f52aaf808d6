package service

import (
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// pageBounds coerces raw limit/offset query values into a safe window.
// Unparsable or non-positive limits fall back to DefaultLimit; negative offsets become 0.
func pageBounds(rawLimit, rawOffset string) (limit, offset int) {
	limit = DefaultLimit
	if v, err := strconv.Atoi(strings.TrimSpace(rawLimit)); err == nil && v > 0 {
		limit = min(v, MaxLimit)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(rawOffset)); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
