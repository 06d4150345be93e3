package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jszwec/csvutil"
)

// RowFile is an append-row CSV artifact. Rows are unique by Key and kept
// sorted by Less, so the file only ever grows in order.
type RowFile[T any] struct {
	Name string // path relative to the store root
	Key  func(T) string
	Less func(a, b T) bool
}

// Read returns the persisted rows; a missing file is an empty list
func (f RowFile[T]) Read(s *Store) ([]T, error) {
	data, err := os.ReadFile(filepath.Join(s.root, f.Name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}

	var rows []T
	if len(bytes.TrimSpace(data)) == 0 {
		return rows, nil
	}
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.Name, err)
	}
	return rows, nil
}

// Append merges rows into the file, skipping keys already present, and
// returns the full ordered list.
func (f RowFile[T]) Append(s *Store, rows ...T) ([]T, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	existing, err := f.Read(s)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(existing)+len(rows))
	merged := make([]T, 0, len(existing)+len(rows))
	added := 0
	for _, r := range existing {
		seen[f.Key(r)] = true
		merged = append(merged, r)
	}
	for _, r := range rows {
		k := f.Key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, r)
		added++
	}

	sort.SliceStable(merged, func(i, j int) bool { return f.Less(merged[i], merged[j]) })

	if added == 0 {
		return merged, nil
	}

	data, err := csvutil.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", f.Name, err)
	}
	if err := s.writeAtomic(filepath.Join(s.root, f.Name), data); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"file":  f.Name,
		"added": added,
		"rows":  len(merged),
	}).Debug("rows appended")

	return merged, nil
}
