package batch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadIdentifiers reads one identifier per line. Lines are trimmed and blank
// lines skipped.
func ReadIdentifiers(r io.Reader) ([]string, error) {
	var ids []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			ids = append(ids, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read identifiers: %w", err)
	}

	return ids, nil
}

// LoadIdentifiers reads an identifier file.
func LoadIdentifiers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifiers file: %w", err)
	}
	defer f.Close()

	return ReadIdentifiers(f)
}
