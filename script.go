package reconciler

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// numberPrefixPattern matches the leading run of decimal digits in a
// script file name, e.g. "0001" in "0001_create_users.sql".
var numberPrefixPattern = regexp.MustCompile(`^[0-9]+`) //nolint:gochecknoglobals // compiled once, used by LoadScripts

// Script is a single schema or migration script loaded from a collection.
// Immutable once loaded.
type Script struct {
	Name   string // original file name, e.g. "0001_create_users.sql"
	Number int    // sequence number parsed from the name's numeric prefix
	Body   string // script contents, decoded as UTF-8
}

// LoadScripts reads every file at the top level of fsys and returns the
// scripts sorted ascending by sequence number. Directories are skipped;
// every regular file must carry a numeric prefix. The set must be numbered
// contiguously starting at 1 with no duplicates; an empty collection is
// valid. No partial set is ever returned.
//
// Callers typically pass an embed.FS subtree (via fs.Sub), an os.DirFS, or
// a fstest.MapFS. Invalid UTF-8 in a script body is replaced with U+FFFD
// rather than rejected. Repeated calls over the same collection yield an
// identical result.
func LoadScripts(fsys fs.FS) ([]Script, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("%w: listing script collection: %w", ErrCannotLoadFile, err)
	}

	scripts := make([]Script, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		number, err := parseScriptNumber(entry.Name())
		if err != nil {
			return nil, err
		}

		scripts = append(scripts, Script{Name: entry.Name(), Number: number})
	}

	sort.SliceStable(scripts, func(i, j int) bool {
		return scripts[i].Number < scripts[j].Number
	})

	if err := validateNumbering(scripts); err != nil {
		return nil, err
	}

	for i := range scripts {
		data, err := fs.ReadFile(fsys, scripts[i].Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCannotLoadFile, scripts[i].Name, err)
		}

		scripts[i].Body = strings.ToValidUTF8(string(data), "�")
	}

	return scripts, nil
}

// parseScriptNumber extracts the leading decimal digit run of a script
// file name as its sequence number.
func parseScriptNumber(name string) (int, error) {
	prefix := numberPrefixPattern.FindString(name)
	if prefix == "" {
		return 0, fmt.Errorf("%w: %q (expected format e.g. %q)", ErrFileNameMalformed, name, "0001_name.sql")
	}

	n, err := strconv.ParseUint(prefix, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrFileNameMalformed, name, err)
	}

	return int(n), nil
}

// validateNumbering checks that a number-sorted script set starts at 1 and
// increases by exactly one per script. Duplicates and gaps both fail here.
func validateNumbering(scripts []Script) error {
	if len(scripts) == 0 {
		return nil
	}

	if first := scripts[0]; first.Number != 1 {
		return fmt.Errorf("%w: first script %q has number %d", ErrFileNumbering, first.Name, first.Number)
	}

	for i := 1; i < len(scripts); i++ {
		prev, cur := scripts[i-1], scripts[i]
		if prev.Number+1 != cur.Number {
			return fmt.Errorf("%w: %q is followed by %q", ErrFileNumbering, prev.Name, cur.Name)
		}
	}

	return nil
}
