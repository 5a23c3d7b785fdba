package tablestorage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
)

// DefaultPageSize matches the service-side cap of a single list response.
const DefaultPageSize = 1000

var (
	ErrNotFound            = errors.New("tablestorage: entity not found")
	ErrInvalidContinuation = errors.New("tablestorage: invalid continuation token")
	ErrUnsupportedDriver   = errors.New("tablestorage: unsupported driver")
)

var codec = sonic.ConfigStd

// Table is a single named table. Entities are JSON documents carrying
// PartitionKey and RowKey attributes.
type Table interface {
	Name() string
	InsertOrMerge(ctx context.Context, entity any) error
	Delete(ctx context.Context, partitionKey, rowKey string) error
	// Get returns ErrNotFound (via errors.Is) when the entity is absent.
	Get(ctx context.Context, partitionKey, rowKey string) ([]byte, error)
	List(ctx context.Context, q Query) (Page, error)
}

type Query struct {
	Filter       Filter
	Top          int
	Continuation string
}

type Page struct {
	Entities [][]byte
	Next     string
}

// Error is a storage fault. Code is the service error code, e.g.
// "ResourceNotFound" or "TableNotFound".
type Error struct {
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func notFound(pk, rk string) error {
	return &Error{
		Code:       "ResourceNotFound",
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("entity %s/%s does not exist", pk, rk),
	}
}

// continuation is the resume point of a listing: the keys of the first
// entity of the next page. Azure hands them out as opaque tokens.
type continuation struct {
	PK string `json:"pk"`
	RK string `json:"rk,omitempty"`
}

func encodeContinuation(pk, rk string) string {
	b, _ := codec.Marshal(continuation{PK: pk, RK: rk})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeContinuation(tok string) (pk, rk string, err error) {
	b, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return "", "", ErrInvalidContinuation
	}
	var c continuation
	if err := codec.Unmarshal(b, &c); err != nil || c.PK == "" {
		return "", "", ErrInvalidContinuation
	}
	return c.PK, c.RK, nil
}

// GetAs loads one entity. A missing entity yields (nil, nil).
func GetAs[T any](ctx context.Context, t Table, pk, rk string) (*T, error) {
	b, err := t.Get(ctx, pk, rk)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out T
	if err := codec.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", pk, rk, err)
	}
	return &out, nil
}

// ListAs fetches a single page and decodes it.
func ListAs[T any](ctx context.Context, t Table, q Query) ([]*T, string, error) {
	p, err := t.List(ctx, q)
	if err != nil {
		return nil, "", err
	}
	out := make([]*T, 0, len(p.Entities))
	for _, b := range p.Entities {
		var v T
		if err := codec.Unmarshal(b, &v); err != nil {
			return nil, "", fmt.Errorf("decode entity: %w", err)
		}
		out = append(out, &v)
	}
	return out, p.Next, nil
}

// ScanAs walks every page matching f. Returning false from fn stops the walk.
func ScanAs[T any](ctx context.Context, t Table, f Filter, fn func(*T) bool) error {
	q := Query{Filter: f}
	for {
		items, next, err := ListAs[T](ctx, t, q)
		if err != nil {
			return err
		}
		for _, it := range items {
			if !fn(it) {
				return nil
			}
		}
		if next == "" {
			return nil
		}
		q.Continuation = next
	}
}
