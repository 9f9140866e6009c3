package ontology

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRootIRI = "http://www.semanticweb.org/ontologies/COPH.owl#Thing"

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db, testRootIRI, zap.NewNop()), mock
}

func termRows(rows ...[]driverValue) *sqlmock.Rows {
	result := sqlmock.NewRows([]string{"iri", "label", "comment"})
	for _, r := range rows {
		result.AddRow(r[0], r[1], r[2])
	}
	return result
}

type driverValue = any

func TestSearchTerms_ByLabel(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`SELECT iri, label, COALESCE\(comment, ''\)`).
		WithArgs("heart").
		WillReturnRows(termRows(
			[]driverValue{"http://example.org/HR", "heart rate", "beats per minute"},
		))

	terms, err := repo.SearchTerms(context.Background(), "heart")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "heart rate", terms[0].Label)
	assert.Equal(t, "beats per minute", terms[0].Comment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchTerms_FallsBackToComment(t *testing.T) {
	repo, mock := newTestRepository(t)

	// label 无结果时回退到 comment 子串查询
	mock.ExpectQuery(`WHERE label ILIKE`).
		WithArgs("bpm").
		WillReturnRows(termRows())
	mock.ExpectQuery(`WHERE comment ILIKE`).
		WithArgs("bpm").
		WillReturnRows(termRows(
			[]driverValue{"http://example.org/HR", "heart rate", "measured in bpm"},
		))

	terms, err := repo.SearchTerms(context.Background(), "bpm")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "heart rate", terms[0].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasLabel(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("heart rate").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.HasLabel(context.Background(), "heart rate")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterPlaceholder(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec(`INSERT INTO ontology_terms`).
		WithArgs("pulse", "http://example.org/Pulse", testRootIRI).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RegisterPlaceholder(context.Background(), "pulse", "http://example.org/Pulse")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
