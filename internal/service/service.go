// Package service contains the business rules of the application.
//
// THE THREE LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so tests drive them
// with in-memory fakes. They return apperror values and know nothing about
// HTTP status codes.
package service

import (
	"strings"
	"unicode/utf8"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/repository"
)

// PerPage is the fixed page size of every paginated listing.
const PerPage = 10

// MaxFieldLength is the longest accepted value of a free-text field.
const MaxFieldLength = 255

// Page is one page of a listing plus what a client needs to fetch the rest.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	PerPage     int
	Total       int
}

// LastPage is the number of the final page; an empty listing has one page.
func (p Page[T]) LastPage() int {
	if p.Total == 0 || p.PerPage <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// pageOptions turns a 1-based page number into LIMIT/OFFSET. Anything below
// 1 is treated as the first page.
func pageOptions(page int) (repository.ListOptions, int) {
	if page < 1 {
		page = 1
	}
	return repository.ListOptions{Limit: PerPage, Offset: (page - 1) * PerPage}, page
}

// requireText trims s and checks it is present and not longer than
// MaxFieldLength characters.
func requireText(field, label, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.ValidationFailed(field, "The "+label+" field is required.")
	}
	if utf8.RuneCountInString(s) > MaxFieldLength {
		return "", apperror.ValidationFailed(field, "The "+label+" field must not be greater than 255 characters.")
	}
	return s, nil
}

// optionalText trims s; blank becomes nil.
func optionalText(field, label string, s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > MaxFieldLength {
		return nil, apperror.ValidationFailed(field, "The "+label+" field must not be greater than 255 characters.")
	}
	return &v, nil
}
