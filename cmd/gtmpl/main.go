// Command gtmpl renders template files from the command line. The
// context is supplied as YAML or JSON and the rendered output goes to
// stdout or a file.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
	"github.com/pkg/profile"

	"github.com/fiji-flo/gtmpl"
)

type cli struct {
	Render renderCmd `cmd:"" default:"withargs" help:"Render a template file with a context."`
	Check  checkCmd  `cmd:"" help:"Parse template files and report syntax errors."`
	Funcs  funcsCmd  `cmd:"" help:"List the builtin template functions."`

	Profile string `default:"" enum:",cpu,mem,trace" help:"Write a pprof profile for this run." placeholder:"mode"`
}

type renderCmd struct {
	Context string `help:"YAML or JSON file providing the context, '-' for stdin." short:"c" type:"path"`
	Output  string `help:"Write output to a file instead of stdout."               short:"o" type:"path"`
	Dynamic bool   `help:"Allow {{template}} names computed by pipelines."`

	Template string `arg:"" help:"Template file, '-' for stdin."`
}

func (r *renderCmd) Run() error {
	text, err := readSource(r.Template)
	if err != nil {
		return err
	}

	var data any
	if r.Context != "" {
		raw, err := readSource(r.Context)
		if err != nil {
			return err
		}
		// goccy/go-yaml parses JSON contexts as well, YAML being a
		// superset.
		if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
			return fmt.Errorf("context %s: %w", r.Context, err)
		}
	}

	t := gtmpl.New(templateName(r.Template))
	t.SetDynamicNames(r.Dynamic)
	if err := t.Parse(text); err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if r.Output != "" {
		f, err := os.Create(r.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return t.Execute(out, data)
}

type checkCmd struct {
	Dynamic bool `help:"Allow {{template}} names computed by pipelines."`

	Templates []string `arg:"" help:"Template files to check."`
}

func (c *checkCmd) Run() error {
	failed := 0
	for _, path := range c.Templates {
		text, err := readSource(path)
		if err != nil {
			return err
		}
		t := gtmpl.New(templateName(path))
		t.SetDynamicNames(c.Dynamic)
		if err := t.Parse(text); err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed++
			continue
		}
		fmt.Printf("%s: ok\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed to parse", failed, len(c.Templates))
	}
	return nil
}

type funcsCmd struct{}

func (funcsCmd) Run() error {
	names := gtmpl.New("funcs").Funcs()
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func readSource(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// templateName derives the name used in error messages from the source
// path.
func templateName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

func startProfile(mode string) func() {
	switch mode {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop
	case "trace":
		return profile.Start(profile.TraceProfile, profile.ProfilePath(".")).Stop
	}
	return func() {}
}

func main() {
	var cli cli
	ktx := kong.Parse(&cli,
		kong.Name("gtmpl"),
		kong.Description("Render templates with {{ }} actions, pipelines and named sub-templates."),
		kong.UsageOnError(),
	)
	defer startProfile(cli.Profile)()
	ktx.FatalIfErrorf(ktx.Run())
}
