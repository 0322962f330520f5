package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentModel struct {
	Namespace string    `gorm:"column:namespace;primaryKey;size:32"`
	Owner     string    `gorm:"column:owner;primaryKey;size:128"`
	DocKey    string    `gorm:"column:doc_key;primaryKey;size:128"`
	Doc       []byte    `gorm:"column:doc;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (documentModel) TableName() string {
	return "documents"
}

// SQLite keeps documents in a single gorm-managed table.
type SQLite struct {
	db *gorm.DB
}

func NewSQLite(db *gorm.DB) (*SQLite, error) {
	if err := db.AutoMigrate(&documentModel{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, namespace, owner, key string) ([]byte, error) {
	var m documentModel
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND owner = ? AND doc_key = ?", namespace, owner, key).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.Doc, nil
}

func (s *SQLite) List(ctx context.Context, namespace, owner string) ([]Record, error) {
	var rows []documentModel
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND owner = ?", namespace, owner).
		Order("doc_key").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			Namespace: r.Namespace,
			Owner:     r.Owner,
			Key:       r.DocKey,
			Doc:       r.Doc,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *SQLite) Put(ctx context.Context, namespace, owner, key string, doc []byte) error {
	return s.Apply(ctx, []Op{PutOp(namespace, owner, key, doc)})
}

func (s *SQLite) Delete(ctx context.Context, namespace, owner, key string) error {
	return s.Apply(ctx, []Op{DeleteOp(namespace, owner, key)})
}

func (s *SQLite) Apply(ctx context.Context, ops []Op) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, op := range ops {
			if op.Delete {
				err := tx.Where("namespace = ? AND owner = ? AND doc_key = ?", op.Namespace, op.Owner, op.Key).
					Delete(&documentModel{}).Error
				if err != nil {
					return err
				}
				continue
			}
			m := documentModel{
				Namespace: op.Namespace,
				Owner:     op.Owner,
				DocKey:    op.Key,
				Doc:       op.Doc,
				UpdatedAt: now,
			}
			if op.Create {
				res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return ErrConflict
				}
				continue
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "namespace"}, {Name: "owner"}, {Name: "doc_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"doc", "updated_at"}),
			}).Create(&m).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
