package sqlstore

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}

	return stmts
}

// ApplyDDL executes every statement of ddl in order.
func ApplyDDL(ctx context.Context, exec func(ctx context.Context, query string) error, ddl string) error {
	for i, stmt := range SplitStatements(ddl) {
		if err := exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl statement %d: %w", i+1, err)
		}
	}
	return nil
}
