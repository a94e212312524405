package paginator

import (
	"errors"
	"strconv"
)

var ErrInvalidPage = errors.New("invalid page")

// Page describes one page of a list of Total items.
type Page struct {
	Number  int
	PerPage int
	Total   int
}

// New returns page number of total items. The first page always exists, even
// for an empty list; any other page outside the range is ErrInvalidPage.
func New(total, perPage, number int) (Page, error) {
	if perPage < 1 {
		perPage = 1
	}

	p := Page{Number: number, PerPage: perPage, Total: total}
	if number < 1 || number > p.NumPages() {
		return Page{}, ErrInvalidPage
	}

	return p, nil
}

// Parse reads a page number from a query value. Empty means the first page.
func Parse(s string) (int, error) {
	if s == "" {
		return 1, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidPage
	}

	return n, nil
}

func (p Page) NumPages() int {
	if p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

func (p Page) HasNext() bool {
	return p.Number < p.NumPages()
}

func (p Page) HasPrevious() bool {
	return p.Number > 1
}

func (p Page) Next() int {
	return p.Number + 1
}

func (p Page) Previous() int {
	return p.Number - 1
}

// Range lists every page number, for page links.
func (p Page) Range() []int {
	pages := make([]int, 0, p.NumPages())
	for i := 1; i <= p.NumPages(); i++ {
		pages = append(pages, i)
	}
	return pages
}
