package store

import (
	"context"
	"errors"
	"time"
)

const (
	NamespaceWallets     = "wallets"
	NamespaceArtifacts   = "artifacts"
	NamespaceStocks      = "stocks"
	NamespaceIdempotency = "idempotency"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document already exists")
)

type Record struct {
	Namespace string
	Owner     string
	Key       string
	Doc       []byte
	UpdatedAt time.Time
}

// Op is one write inside an Apply batch. Delete removes the document, Create
// inserts it and fails the whole batch with ErrConflict if it already exists,
// anything else is an upsert.
type Op struct {
	Namespace string
	Owner     string
	Key       string
	Doc       []byte
	Delete    bool
	Create    bool
}

type Store interface {
	Get(ctx context.Context, namespace, owner, key string) ([]byte, error)
	List(ctx context.Context, namespace, owner string) ([]Record, error)
	Put(ctx context.Context, namespace, owner, key string, doc []byte) error
	Delete(ctx context.Context, namespace, owner, key string) error
	// Apply commits every op or none of them.
	Apply(ctx context.Context, ops []Op) error
	Close() error
}

func PutOp(namespace, owner, key string, doc []byte) Op {
	return Op{Namespace: namespace, Owner: owner, Key: key, Doc: doc}
}

func DeleteOp(namespace, owner, key string) Op {
	return Op{Namespace: namespace, Owner: owner, Key: key, Delete: true}
}

func CreateOp(namespace, owner, key string, doc []byte) Op {
	return Op{Namespace: namespace, Owner: owner, Key: key, Doc: doc, Create: true}
}
