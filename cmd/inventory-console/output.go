package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
)

// compileQuery rejects a malformed --query before any backend call is made.
func compileQuery(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return fmt.Errorf("invalid --query expression: %w", err)
	}
	return nil
}

// printJSON writes v as indented JSON, filtered through the JMESPath query when set.
func printJSON(w io.Writer, v any, query string) error {
	out := v
	if query != "" {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode output: %w", err)
		}
		out, err = jmespath.Search(query, data)
		if err != nil {
			return fmt.Errorf("evaluate --query: %w", err)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func printUserTable(w io.Writer, users []domainauth.UserListItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tEMAIL\tNAME\tROLE"); err != nil {
		return err
	}
	for _, u := range users {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			name = u.UserName
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Email, name, u.Role); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// readSecret reads one line from r, without the trailing newline.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
