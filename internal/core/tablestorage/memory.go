package tablestorage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memKey struct{ pk, rk string }

// MemoryTable keeps entities in process. It follows the service semantics
// the stores rely on: merge on upsert, 404 on missing keys, results ordered
// by partition key then row key.
type MemoryTable struct {
	name string

	mu   sync.RWMutex
	rows map[memKey]map[string]any
}

func NewMemoryTable(name string) *MemoryTable {
	return &MemoryTable{name: name, rows: make(map[memKey]map[string]any)}
}

func (m *MemoryTable) Name() string { return m.name }

func (m *MemoryTable) InsertOrMerge(ctx context.Context, entity any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	props, err := toProps(entity)
	if err != nil {
		return err
	}
	pk, _ := props["PartitionKey"].(string)
	rk, _ := props["RowKey"].(string)
	if pk == "" {
		return &Error{Code: "PropertiesNeedValue", StatusCode: 400, Message: "PartitionKey is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{pk, rk}
	cur, ok := m.rows[k]
	if !ok {
		m.rows[k] = props
		return nil
	}
	for name, v := range props {
		cur[name] = v
	}
	return nil
}

func (m *MemoryTable) Delete(ctx context.Context, pk, rk string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{pk, rk}
	if _, ok := m.rows[k]; !ok {
		return notFound(pk, rk)
	}
	delete(m.rows, k)
	return nil
}

func (m *MemoryTable) Get(ctx context.Context, pk, rk string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	props, ok := m.rows[memKey{pk, rk}]
	if !ok {
		return nil, notFound(pk, rk)
	}
	return codec.Marshal(props)
}

func (m *MemoryTable) List(ctx context.Context, q Query) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	want, err := toProps(map[string]any(q.Filter))
	if err != nil {
		return Page{}, err
	}
	var from *memKey
	if q.Continuation != "" {
		pk, rk, err := decodeContinuation(q.Continuation)
		if err != nil {
			return Page{}, err
		}
		from = &memKey{pk, rk}
	}
	top := q.Top
	if top <= 0 || top > DefaultPageSize {
		top = DefaultPageSize
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]memKey, 0, len(m.rows))
	for k := range m.rows {
		if from != nil && less(k, *from) {
			continue
		}
		if matches(m.rows[k], want) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	var page Page
	for i, k := range keys {
		if i == top {
			page.Next = encodeContinuation(k.pk, k.rk)
			break
		}
		b, err := codec.Marshal(m.rows[k])
		if err != nil {
			return Page{}, err
		}
		page.Entities = append(page.Entities, b)
	}
	return page, nil
}

func less(a, b memKey) bool {
	if a.pk != b.pk {
		return a.pk < b.pk
	}
	return a.rk < b.rk
}

func matches(row, want map[string]any) bool {
	for k, v := range want {
		if got, ok := row[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// toProps round-trips through JSON so stored values and filter values share
// one representation (string, bool, float64, nil).
func toProps(v any) (map[string]any, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	props := map[string]any{}
	if err := codec.Unmarshal(b, &props); err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	return props, nil
}
