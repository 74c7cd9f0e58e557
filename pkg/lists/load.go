package lists

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// ParseText splits pasted text into items: one per line, trimmed, blank
// lines dropped, later duplicates dropped.
func ParseText(text string) []string {
	return dedupe(strings.Split(text, "\n"))
}

func dedupe(values []string) []string {
	items := []string{}
	seen := make(map[string]bool)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		items = append(items, v)
	}
	return items
}

// LoadItems reads items from a file, or stdin when path is "-".
//
// A .json file (or any file when forceJSON is set) must hold an array; each
// element is rendered through templateData, or kept as compact JSON without
// one. Other files are read line by line, with each line available to the
// template as {{.Data}}. A template starting with '@' names a template file.
// Items are deduplicated like ParseText. A nil logger discards warnings.
func LoadItems(logger *slog.Logger, path, templateData string, forceJSON bool) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var tmpl *template.Template
	if templateData != "" {
		if templateData[0] == '@' {
			content, err := os.ReadFile(templateData[1:])
			if err != nil {
				return nil, fmt.Errorf("failed to read template file %s: %w", templateData[1:], err)
			}
			templateData = string(content)
		}
		var err error
		if tmpl, err = template.New("listsorter-item-template").Parse(templateData); err != nil {
			return nil, fmt.Errorf("failed to parse template: %w", err)
		}
	}

	var in io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %s: %w", path, err)
		}
		defer file.Close()
		in = file
	}

	var (
		values []string
		err    error
	)
	if forceJSON || strings.ToLower(filepath.Ext(path)) == ".json" {
		values, err = loadJSON(logger, in, path, tmpl)
	} else {
		values, err = loadLines(in, path, tmpl)
	}
	if err != nil {
		return nil, err
	}

	return dedupe(values), nil
}

func loadJSON(logger *slog.Logger, in io.Reader, path string, tmpl *template.Template) ([]string, error) {
	var data []interface{}
	if err := json.NewDecoder(in).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from %s: %w", path, err)
	}

	if tmpl == nil && len(data) > 0 {
		logger.Warn("using json input without a template, using JSON object as it is")
	}

	values := make([]string, 0, len(data))
	for _, value := range data {
		if tmpl != nil {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, value); err != nil {
				return nil, fmt.Errorf("failed to execute template: %w", err)
			}
			values = append(values, oneLine(buf.String()))
			continue
		}
		if s, ok := value.(string); ok {
			values = append(values, oneLine(s))
			continue
		}
		jsonValue, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON value: %w", err)
		}
		values = append(values, string(jsonValue))
	}
	return values, nil
}

func loadLines(in io.Reader, path string, tmpl *template.Template) ([]string, error) {
	var values []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if tmpl != nil {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, map[string]string{"Data": line}); err != nil {
				return nil, fmt.Errorf("failed to execute template on line: %w", err)
			}
			line = oneLine(buf.String())
		}
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line from %s: %w", path, err)
	}
	return values, nil
}

// oneLine folds rendered templates onto a single line, since items are
// newline separated everywhere else.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
