package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/garyellow/eyecare-linebot-go/internal/storage"
)

// decodeDiseases reads a JSON array of disease rows. Every row needs a type,
// a positive number and a description, and (type, number) must be unique.
func decodeDiseases(r io.Reader) ([]*storage.Disease, error) {
	var rows []*storage.Disease
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode diseases: %w", err)
	}

	type key struct {
		typ    string
		number int
	}
	seen := make(map[key]int, len(rows))
	var errs []error
	for i, d := range rows {
		if d == nil {
			errs = append(errs, fmt.Errorf("row %d: null", i))
			continue
		}
		d.Type = strings.TrimSpace(d.Type)
		switch {
		case d.Type == "":
			errs = append(errs, fmt.Errorf("row %d: type is required", i))
		case d.Number <= 0:
			errs = append(errs, fmt.Errorf("row %d: number must be positive, got %d", i, d.Number))
		case strings.TrimSpace(d.Description) == "":
			errs = append(errs, fmt.Errorf("row %d: description is required", i))
		}
		k := key{d.Type, d.Number}
		if prev, ok := seen[k]; ok {
			errs = append(errs, fmt.Errorf("row %d: duplicates row %d (%s/%d)", i, prev, d.Type, d.Number))
		}
		seen[k] = i
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rows, nil
}

// loadFile upserts the rows of path and returns how many were written.
func loadFile(ctx context.Context, db *storage.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	rows, err := decodeDiseases(f)
	if err != nil {
		return 0, err
	}
	if err := db.SaveDiseasesBatch(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func printDiseases(w io.Writer, diseases []storage.Disease) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tNUMBER\tPARAGRAPHS\tFIRST LINE")
	for _, d := range diseases {
		paragraphs := d.Paragraphs()
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", d.Type, d.Number, len(paragraphs), paragraphs[0])
	}
	_ = tw.Flush()
}
