package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadWorklist reads the query worklist from a file. Each non-empty,
// non-comment line is "source term...", whitespace separated; everything
// after the source name is the query term.
func LoadWorklist(path string) ([]Query, error) {
	file, err := os.Open(path) //#nosec G304 -- Worklist path comes from config
	if err != nil {
		return nil, fmt.Errorf("open worklist: %w", err)
	}
	defer file.Close()

	var queries []Query
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		src, term, found := strings.Cut(line, " ")
		if !found || strings.TrimSpace(term) == "" {
			return nil, fmt.Errorf("worklist line %d: want \"source query\", got %q", lineNum, line)
		}
		queries = append(queries, Query{
			Source: src,
			Term:   strings.TrimSpace(term),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read worklist: %w", err)
	}
	return queries, nil
}
