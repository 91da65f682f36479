package utils

import (
	"errors"
	"net/url"
	"strconv"
)

var (
	ErrInvalidLimit  = errors.New("Invalid limit parameter")
	ErrInvalidOffset = errors.New("Invalid offset parameter")
)

// PageParams reads limit and offset from a query string. Absent values take the
// defaults; values that are present must be base-10 integers. Range checks belong
// to the caller.
func PageParams(q url.Values, defaultLimit int) (limit, offset int, err error) {
	limit, err = intParam(q, "limit", defaultLimit)
	if err != nil {
		return 0, 0, ErrInvalidLimit
	}
	offset, err = intParam(q, "offset", 0)
	if err != nil {
		return 0, 0, ErrInvalidOffset
	}
	return limit, offset, nil
}

func intParam(q url.Values, key string, fallback int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
