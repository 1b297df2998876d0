package model

import "fmt"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is zero-based.
type Page struct {
	Number uint
	Size   uint
}

func NewPage(number, size uint) (Page, error) {
	if size == 0 {
		size = DefaultPageSize
	}

	if size > MaxPageSize {
		return Page{}, fmt.Errorf("%w: size %d exceeds %d", ErrInvalidPagination, size, MaxPageSize)
	}

	return Page{Number: number, Size: size}, nil
}

func DefaultPage() Page {
	return Page{Number: 0, Size: DefaultPageSize}
}

func (p Page) Offset() uint64 {
	return uint64(p.Number) * uint64(p.Size)
}

func (p Page) Limit() uint64 {
	return uint64(p.Size)
}

type PageResult[T any] struct {
	Items       []T  `json:"items"`
	Page        uint `json:"page"`
	Size        uint `json:"size"`
	TotalItems  uint `json:"totalItems"`
	TotalPages  uint `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

func NewPageResult[T any](items []T, page Page, totalItems uint) PageResult[T] {
	if items == nil {
		items = []T{}
	}

	var totalPages uint
	if page.Size > 0 {
		totalPages = (totalItems + page.Size - 1) / page.Size
	}

	return PageResult[T]{
		Items:       items,
		Page:        page.Number,
		Size:        page.Size,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     page.Number+1 < totalPages,
		HasPrevious: page.Number > 0,
	}
}
