// Package pairs loads labeled face pairs and partitions them into train and
// test subsets without leaking image identities between the two.
package pairs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Label values for a pair.
const (
	Different = 0
	Same      = 1
)

// Column names required in a pair table.
const (
	ColumnFile1 = "file1"
	ColumnFile2 = "file2"
	ColumnLabel = "label"
)

var (
	// ErrMissingColumn is returned when a pair table lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnsafePath is returned for identifiers that would resolve outside
	// the images root.
	ErrUnsafePath = errors.New("image path escapes images root")
)

// Pair is one labeled row of the pair table. Label is Same when both images
// show the same person.
type Pair struct {
	ImageA string
	ImageB string
	Label  int
}

// Identity normalizes an image identifier so that the same file always maps
// to the same key: slashes are unified, the path is cleaned and the text is
// brought to Unicode NFC.
func Identity(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	id = strings.ReplaceAll(id, "\\", "/")
	return norm.NFC.String(path.Clean(id))
}

// IdentitySet returns the set of image identities referenced by pairs.
func IdentitySet(pairs []Pair) map[string]struct{} {
	set := make(map[string]struct{}, len(pairs)*2)
	for _, p := range pairs {
		set[Identity(p.ImageA)] = struct{}{}
		set[Identity(p.ImageB)] = struct{}{}
	}
	return set
}

// Overlap returns the identities present in both a and b.
func Overlap(a, b []Pair) []string {
	left := IdentitySet(a)
	var shared []string
	for id := range IdentitySet(b) {
		if _, ok := left[id]; ok {
			shared = append(shared, id)
		}
	}
	return shared
}

// Resolve maps an image identifier to its path under root. Absolute
// identifiers and identifiers climbing out of root are rejected.
func Resolve(root, id string) (string, error) {
	clean := Identity(id)
	if clean == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrUnsafePath)
	}
	local := filepath.FromSlash(clean)
	if path.IsAbs(clean) || filepath.IsAbs(local) || filepath.VolumeName(local) != "" ||
		clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, id)
	}
	return filepath.Join(root, local), nil
}

// LoadCSV reads a pair table from a CSV file.
func LoadCSV(filename string) ([]Pair, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open pair table: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a pair table with a header row containing at least the
// file1, file2 and label columns. Other columns are ignored.
func ReadCSV(r io.Reader) ([]Pair, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	idx := make([]int, 0, 3)
	for _, name := range []string{ColumnFile1, ColumnFile2, ColumnLabel} {
		i, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		idx = append(idx, i)
	}

	var pairs []Pair
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for _, i := range idx {
			if i >= len(record) {
				return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, i+1, len(record))
			}
		}

		label, err := parseLabel(record[idx[2]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pairs = append(pairs, Pair{
			ImageA: strings.TrimSpace(record[idx[0]]),
			ImageB: strings.TrimSpace(record[idx[1]]),
			Label:  label,
		})
	}
	return pairs, nil
}

func parseLabel(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n == Different || n == Same {
			return n, nil
		}
		return 0, fmt.Errorf("label must be 0 or 1, got %d", n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid label %q", s)
	}
	switch f {
	case 0:
		return Different, nil
	case 1:
		return Same, nil
	}
	return 0, fmt.Errorf("label must be 0 or 1, got %v", f)
}
