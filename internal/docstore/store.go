// Package docstore defines the document store the wall is built on: an
// append-only collection of records with ordered live subscriptions and
// equality queries, plus in-memory, SQLite and remote implementations.
package docstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// FieldCreatedAt orders by the timestamp the store assigned on append.
const FieldCreatedAt = "createdAt"

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

var (
	ErrClosed            = errors.New("document store is closed")
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrInvalidField      = errors.New("invalid field name")
	ErrInvalidDirection  = errors.New("invalid order direction")
	ErrInvalidValue      = errors.New("unsupported query value")
)

// Record is the store-native shape of a document.
type Record struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Data      map[string]any `json:"data"`
}

// Unsubscribe stops a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type DocumentStore interface {
	// Append writes one record and returns the id the store assigned to it.
	Append(ctx context.Context, collection string, data map[string]any) (string, error)
	// SubscribeOrdered delivers the whole collection, ordered by orderBy and
	// then by id, once on subscribe and again after every change. onError is
	// called at most once and ends the subscription.
	SubscribeOrdered(collection, orderBy string, direction Direction, onChange func([]Record), onError func(error)) Unsubscribe
	QueryWhere(ctx context.Context, collection, field string, value any) ([]Record, error)
}

// Backend is a DocumentStore that the daemon can host.
type Backend interface {
	DocumentStore
	Name() string
	Revision(collection string) uint64
	Subscriptions() int
	Close() error
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

func ValidateCollection(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func ValidateField(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case Ascending:
		return Ascending, nil
	case Descending, "":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// SortRecords orders records by orderBy in the given direction. Ties are
// always broken by id in ascending lexical order, whatever the direction.
func SortRecords(records []Record, orderBy string, direction Direction) {
	slices.SortStableFunc(records, func(a, b Record) int {
		var c int
		if orderBy == FieldCreatedAt {
			c = a.CreatedAt.Compare(b.CreatedAt)
		} else {
			c = compareValues(a.Data[orderBy], b.Data[orderBy])
		}
		if direction == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// compareValues orders JSON values: missing < bool < number < string.
// Values of other types compare equal.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case float64:
		return cmp.Compare(av, b.(float64))
	case string:
		return strings.Compare(av, b.(string))
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

// normalizeData copies data through JSON so that stored documents hold only
// JSON types (numbers become float64) and share nothing with the caller.
func normalizeData(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// normalizeValue converts a query value to its JSON form. Only scalars can
// be matched.
func normalizeValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	switch out.(type) {
	case nil, bool, float64, string:
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidValue, value)
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{ID: r.ID, CreatedAt: r.CreatedAt, Data: cloneMap(r.Data)}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return cloneMap(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
