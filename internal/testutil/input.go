// Package testutil loads the data-driven render cases under testdata.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Case is one render case: a context, a template and the exact output
// the template must produce for it.
type Case struct {
	Name     string
	Context  any
	Template string
	Expected string
}

// sections of a case file are separated by a line holding only "---":
// YAML context, template source, expected output. A file may omit the
// context by starting directly with "---".
const separator = "\n---\n"

// ParseCase parses the content of one case file.
func ParseCase(name, content string) (*Case, error) {
	content = strings.TrimPrefix(content, "---\n")
	parts := strings.SplitN(content, separator, 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%s: want context, template and expected output separated by ---", name)
	}
	c := &Case{
		Name:     name,
		Template: parts[1],
		// The file's final newline belongs to the file, not the output.
		Expected: strings.TrimSuffix(parts[2], "\n"),
	}
	if strings.TrimSpace(parts[0]) != "" {
		if err := yaml.Unmarshal([]byte(parts[0]), &c.Context); err != nil {
			return nil, fmt.Errorf("%s: context: %w", name, err)
		}
	}
	return c, nil
}

// LoadCases reads every .txt file in dir, sorted by name.
func LoadCases(dir string) ([]*Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	cases := make([]*Case, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".txt")
		c, err := ParseCase(name, string(content))
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}
