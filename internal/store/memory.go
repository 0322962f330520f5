package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type docKey struct {
	namespace string
	owner     string
	key       string
}

type memoryDoc struct {
	doc       []byte
	updatedAt time.Time
}

type Memory struct {
	mu   sync.RWMutex
	docs map[docKey]memoryDoc
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[docKey]memoryDoc)}
}

func (m *Memory) Get(_ context.Context, namespace, owner, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[docKey{namespace, owner, key}]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(d.doc), nil
}

func (m *Memory) List(_ context.Context, namespace, owner string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for k, d := range m.docs {
		if k.namespace != namespace || k.owner != owner {
			continue
		}
		out = append(out, Record{
			Namespace: k.namespace,
			Owner:     k.owner,
			Key:       k.key,
			Doc:       cloneBytes(d.doc),
			UpdatedAt: d.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Put(ctx context.Context, namespace, owner, key string, doc []byte) error {
	return m.Apply(ctx, []Op{PutOp(namespace, owner, key, doc)})
}

func (m *Memory) Delete(ctx context.Context, namespace, owner, key string) error {
	return m.Apply(ctx, []Op{DeleteOp(namespace, owner, key)})
}

func (m *Memory) Apply(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make(map[docKey]bool, len(ops))
	for _, op := range ops {
		if !op.Create {
			continue
		}
		k := docKey{op.Namespace, op.Owner, op.Key}
		if _, ok := m.docs[k]; ok || pending[k] {
			return ErrConflict
		}
		pending[k] = true
	}

	now := time.Now().UTC()
	for _, op := range ops {
		k := docKey{op.Namespace, op.Owner, op.Key}
		if op.Delete {
			delete(m.docs, k)
			continue
		}
		m.docs[k] = memoryDoc{doc: cloneBytes(op.Doc), updatedAt: now}
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
