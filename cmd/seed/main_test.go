package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/garyellow/eyecare-linebot-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDiseases(t *testing.T) {
	rows, err := decodeDiseases(strings.NewReader(`[
		{"type": " 1 ", "number": 2, "description": "a%Db"},
		{"type": "1", "number": 3, "description": "c"}
	]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].Type)
	assert.Equal(t, "a\nb", rows[0].DisplayText())
}

func TestDecodeDiseases_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"not an array", `{"type":"1"}`, "decode diseases"},
		{"unknown field", `[{"type":"1","number":2,"description":"x","extra":1}]`, "unknown field"},
		{"missing type", `[{"number":2,"description":"x"}]`, "type is required"},
		{"zero number", `[{"type":"1","number":0,"description":"x"}]`, "number must be positive"},
		{"blank description", `[{"type":"1","number":2,"description":"  "}]`, "description is required"},
		{"null row", `[null]`, "null"},
		{"duplicate", `[{"type":"1","number":2,"description":"x"},{"type":"1","number":2,"description":"y"}]`, "duplicates row 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeDiseases(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	db, err := storage.New(ctx, filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	n, err := loadFile(ctx, db, filepath.Join("testdata", "diseases.json"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Loading twice upserts instead of duplicating.
	_, err = loadFile(ctx, db, filepath.Join("testdata", "diseases.json"))
	require.NoError(t, err)
	count, err := db.CountDiseases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	d, err := db.GetDisease(ctx, "4", 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.DisplayText(), "乾眼症"))
	assert.Equal(t, 3, len(d.Paragraphs()))
}

func TestLoadFile_Missing(t *testing.T) {
	ctx := context.Background()
	db, err := storage.New(ctx, filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = loadFile(ctx, db, filepath.Join("testdata", "missing.json"))
	require.Error(t, err)
}

func TestPrintDiseases(t *testing.T) {
	var buf bytes.Buffer
	printDiseases(&buf, []storage.Disease{
		{Type: "1", Number: 2, Description: "白內障%D第二段"},
	})

	out := buf.String()
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "白內障")
	assert.NotContains(t, out, "第二段")
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"load", "upload", "list"}, names)

	load, _, err := root.Find([]string{"load"})
	require.NoError(t, err)
	assert.NotNil(t, load.Flags().Lookup("file"))
	assert.NotNil(t, load.Flags().Lookup("upload"))
}
