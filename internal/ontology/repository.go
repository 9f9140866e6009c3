// Package ontology 本体术语：本地术语库查询与远程查找服务客户端
package ontology

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/models"
)

// Repository 本地本体术语库（PostgreSQL）
type Repository struct {
	db      *sql.DB
	rootIRI string
	logger  *zap.Logger
}

// NewRepository 创建本体术语库
// rootIRI 为根概念，远程查到但本地缺失的术语作为占位类挂在其下
func NewRepository(db *sql.DB, rootIRI string, logger *zap.Logger) *Repository {
	return &Repository{
		db:      db,
		rootIRI: rootIRI,
		logger:  logger,
	}
}

// SearchTerms 按 label 子串检索术语；无结果时回退到 comment 子串
func (r *Repository) SearchTerms(ctx context.Context, query string) ([]models.OntologyTerm, error) {
	terms, err := r.search(ctx, "label", query)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		terms, err = r.search(ctx, "comment", query)
		if err != nil {
			return nil, err
		}
	}
	return terms, nil
}

func (r *Repository) search(ctx context.Context, column, query string) ([]models.OntologyTerm, error) {
	stmt := fmt.Sprintf(`
		SELECT iri, label, COALESCE(comment, '')
		FROM ontology_terms
		WHERE %s ILIKE '%%' || $1 || '%%'
		ORDER BY label
	`, column)

	rows, err := r.db.QueryContext(ctx, stmt, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search ontology terms by %s: %w", column, err)
	}
	defer rows.Close()

	var terms []models.OntologyTerm
	for rows.Next() {
		var t models.OntologyTerm
		if err := rows.Scan(&t.IRI, &t.Label, &t.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan ontology term: %w", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ontology terms: %w", err)
	}

	return terms, nil
}

// HasLabel 判断本地库中是否已有精确匹配该 label 的术语
func (r *Repository) HasLabel(ctx context.Context, label string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ontology_terms WHERE label = $1)`, label,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ontology label: %w", err)
	}
	return exists, nil
}

// RegisterPlaceholder 在根概念下登记一个占位术语
// 远程查找服务选中但本地缺失的术语经此写入，等本体维护者后续归位
func (r *Repository) RegisterPlaceholder(ctx context.Context, label, iri string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ontology_terms (iri, label, parent_iri)
		VALUES ($1, $2, $3)
		ON CONFLICT (iri) DO NOTHING
	`, iri, label, r.rootIRI)
	if err != nil {
		return fmt.Errorf("failed to register placeholder term: %w", err)
	}

	r.logger.Info("Registered placeholder ontology term",
		zap.String("label", label),
		zap.String("iri", iri),
	)
	return nil
}
