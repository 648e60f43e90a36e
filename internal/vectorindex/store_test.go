package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectDocuments = `SELECT id, text, metadata, vector FROM documents ORDER BY position, id`

func TestReadDocuments(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "text", "metadata", "vector"}).
		AddRow("a", "alpha", `{"title":"A"}`, serializeVector([]float32{1, 2})).
		AddRow("b", "beta", nil, serializeVector([]float32{3, 4}))
	mock.ExpectQuery(selectDocuments).WillReturnRows(rows)

	docs, vectors, err := readDocuments(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "A", docs[0].MetadataString("title"))
	assert.Nil(t, docs[1].Metadata)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, vectors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadDocumentsErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "query error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(selectDocuments).WillReturnError(errors.New("disk I/O error"))
			},
		},
		{
			name: "bad metadata",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "text", "metadata", "vector"}).
					AddRow("a", "alpha", `{broken`, serializeVector([]float32{1}))
				mock.ExpectQuery(selectDocuments).WillReturnRows(rows)
			},
		},
		{
			name: "truncated vector",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "text", "metadata", "vector"}).
					AddRow("a", "alpha", `{}`, []byte{1, 2, 3})
				mock.ExpectQuery(selectDocuments).WillReturnRows(rows)
			},
		},
		{
			name: "row error",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "text", "metadata", "vector"}).
					AddRow("a", "alpha", `{}`, serializeVector([]float32{1})).
					RowError(0, errors.New("corrupt page"))
				mock.ExpectQuery(selectDocuments).WillReturnRows(rows)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close()

			tt.setup(mock)
			docs, vectors, err := readDocuments(context.Background(), db)
			assert.Error(t, err)
			assert.Nil(t, docs)
			assert.Nil(t, vectors)
		})
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := deserializeVector(serializeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDistances(t *testing.T) {
	assert.InDelta(t, 5.0, l2Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 1}, []float32{2, 2}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
