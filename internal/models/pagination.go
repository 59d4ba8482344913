package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	DefaultSkip  = 0
	DefaultLimit = 10
)

var ErrInvalidPagination = errors.New("invalid pagination")

// Pagination selects the half-open window [Skip, Skip+Limit) of a
// newest-first review sequence.
type Pagination struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

func DefaultPagination() Pagination {
	return Pagination{Skip: DefaultSkip, Limit: DefaultLimit}
}

func NewPagination(skip, limit int) (Pagination, error) {
	p := Pagination{Skip: skip, Limit: limit}
	if err := p.Validate(); err != nil {
		return Pagination{}, err
	}
	return p, nil
}

// ParsePagination reads query-string values; empty strings fall back to defaults.
func ParsePagination(skipRaw, limitRaw string) (Pagination, error) {
	p := DefaultPagination()

	if skipRaw != "" {
		skip, err := strconv.Atoi(skipRaw)
		if err != nil {
			return Pagination{}, fmt.Errorf("%w: skip %q is not an integer", ErrInvalidPagination, skipRaw)
		}
		p.Skip = skip
	}

	if limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			return Pagination{}, fmt.Errorf("%w: limit %q is not an integer", ErrInvalidPagination, limitRaw)
		}
		p.Limit = limit
	}

	if err := p.Validate(); err != nil {
		return Pagination{}, err
	}
	return p, nil
}

func (p Pagination) Validate() error {
	if p.Skip < 0 {
		return fmt.Errorf("%w: skip must be >= 0, got %d", ErrInvalidPagination, p.Skip)
	}
	if p.Limit < 1 {
		return fmt.Errorf("%w: limit must be >= 1, got %d", ErrInvalidPagination, p.Limit)
	}
	if p.Skip > math.MaxInt-p.Limit {
		return fmt.Errorf("%w: skip+limit overflows", ErrInvalidPagination)
	}
	return nil
}

// End is the exclusive upper bound of the window, i.e. the number of
// items that must exist for the window to be full.
func (p Pagination) End() int {
	return p.Skip + p.Limit
}
