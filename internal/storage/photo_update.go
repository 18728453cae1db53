package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// photoColumns is the set of columns the worker is allowed to touch.
var photoColumns = map[string]bool{
	"status":            true,
	"thumbnail_url":     true,
	"watermarked_url":   true,
	"width":             true,
	"height":            true,
	"meta":              true,
	"auto_tags":         true,
	"processing_errors": true,
}

func buildPhotoUpdate(id uuid.UUID, fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !photoColumns[col] {
			return "", nil, fmt.Errorf("column %q is not updatable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	args = append(args, id)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
		args = append(args, fields[col])
	}
	sets = append(sets, "updated_at = now()")

	query := "UPDATE photos SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	return query, args, nil
}
