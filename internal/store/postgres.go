package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	p := &Postgres{db: db}
	if err := p.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS coinforge;
		CREATE TABLE IF NOT EXISTS coinforge.documents (
			namespace text NOT NULL,
			owner text NOT NULL,
			doc_key text NOT NULL,
			doc jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, owner, doc_key)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, namespace, owner, key string) ([]byte, error) {
	var doc []byte
	err := p.db.QueryRow(ctx, `
		SELECT doc
		FROM coinforge.documents
		WHERE namespace = $1 AND owner = $2 AND doc_key = $3
	`, namespace, owner, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Postgres) List(ctx context.Context, namespace, owner string) ([]Record, error) {
	rows, err := p.db.Query(ctx, `
		SELECT doc_key, doc, updated_at
		FROM coinforge.documents
		WHERE namespace = $1 AND owner = $2
		ORDER BY doc_key
	`, namespace, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r := Record{Namespace: namespace, Owner: owner}
		if err := rows.Scan(&r.Key, &r.Doc, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Put(ctx context.Context, namespace, owner, key string, doc []byte) error {
	return p.Apply(ctx, []Op{PutOp(namespace, owner, key, doc)})
}

func (p *Postgres) Delete(ctx context.Context, namespace, owner, key string) error {
	return p.Apply(ctx, []Op{DeleteOp(namespace, owner, key)})
}

func (p *Postgres) Apply(ctx context.Context, ops []Op) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		switch {
		case op.Delete:
			_, err = tx.Exec(ctx, `
				DELETE FROM coinforge.documents
				WHERE namespace = $1 AND owner = $2 AND doc_key = $3
			`, op.Namespace, op.Owner, op.Key)
		case op.Create:
			cmd, execErr := tx.Exec(ctx, `
				INSERT INTO coinforge.documents (namespace, owner, doc_key, doc, updated_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (namespace, owner, doc_key) DO NOTHING
			`, op.Namespace, op.Owner, op.Key, op.Doc)
			if execErr == nil && cmd.RowsAffected() == 0 {
				return ErrConflict
			}
			err = execErr
		default:
			_, err = tx.Exec(ctx, `
				INSERT INTO coinforge.documents (namespace, owner, doc_key, doc, updated_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (namespace, owner, doc_key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
			`, op.Namespace, op.Owner, op.Key, op.Doc)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
