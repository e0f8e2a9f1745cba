package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
)

func TestGetDisease(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDiseasesBatch(ctx, []*Disease{
		{Type: "3", Number: 2, Description: "Line1%DLine2%DLine3"},
		{Type: "3", Number: 1, Description: "short"},
		{Type: "5", Number: 2, Description: "single"},
	}))

	d, err := db.GetDisease(ctx, "3", 2)
	require.NoError(t, err)
	assert.Equal(t, "3", d.Type)
	assert.Equal(t, 2, d.Number)
	assert.Equal(t, "Line1\nLine2\nLine3", d.DisplayText())

	d, err = db.GetDisease(ctx, "3", 1)
	require.NoError(t, err)
	assert.Equal(t, "short", d.DisplayText())
}

func TestGetDisease_NotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	_, err := db.GetDisease(context.Background(), "99", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestGetDisease_QueryFailure(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.conn.ExecContext(ctx, `DROP TABLE disease`)
	require.NoError(t, err)

	_, err = db.GetDisease(ctx, "3", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domerrors.ErrQuery)
	assert.NotErrorIs(t, err, domerrors.ErrNotFound)
}

func TestGetDisease_ConnectionFailure(t *testing.T) {
	t.Parallel()
	db, err := NewTestDB()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.GetDisease(context.Background(), "3", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domerrors.ErrStoreConnection)
}

func TestGetDisease_CancelledContext(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.GetDisease(ctx, "3", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domerrors.ErrStoreConnection)
}

// Connections are returned to the pool, so sequential and concurrent lookups
// on a single-connection pool never starve.
func TestGetDisease_ReleasesConnection(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveDisease(ctx, &Disease{Type: "1", Number: 2, Description: "x"}))

	for range 20 {
		_, err := db.GetDisease(ctx, "missing", 2)
		require.ErrorIs(t, err, domerrors.ErrNotFound)
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			d, err := db.GetDisease(ctx, "1", 2)
			assert.NoError(t, err)
			if d != nil {
				assert.Equal(t, "x", d.Description)
			}
		})
	}
	wg.Wait()
}

func TestSaveDisease_Upsert(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDisease(ctx, &Disease{Type: "2", Number: 2, Description: "old"}))
	require.NoError(t, db.SaveDisease(ctx, &Disease{Type: "2", Number: 2, Description: "new"}))

	count, err := db.CountDiseases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	d, err := db.GetDisease(ctx, "2", 2)
	require.NoError(t, err)
	assert.Equal(t, "new", d.Description)
}

func TestSaveDiseasesBatch_Empty(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	assert.NoError(t, db.SaveDiseasesBatch(context.Background(), nil))
}

func TestListDiseases(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDiseasesBatch(ctx, []*Disease{
		{Type: "b", Number: 2, Description: "3"},
		{Type: "a", Number: 2, Description: "2"},
		{Type: "a", Number: 1, Description: "1"},
	}))

	list, err := db.ListDiseases(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "1", list[0].Description)
	assert.Equal(t, "2", list[1].Description)
	assert.Equal(t, "3", list[2].Description)
}

func TestDisplayText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"three paragraphs", "Line1%DLine2%DLine3", "Line1\nLine2\nLine3"},
		{"no delimiter", "only", "only"},
		{"empty", "", ""},
		{"trailing delimiter", "a%D", "a\n"},
		{"adjacent delimiters", "a%D%Db", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Disease{Description: tt.in}
			assert.Equal(t, tt.want, d.DisplayText())
		})
	}
}
