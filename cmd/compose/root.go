package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
	"github.com/mxn2020/prompt-verse-io/pkg/formatting"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "compose",
		Short: "Offline prompt composition",
		Long: `compose works on template files and YAML module bundles.

Commands:
  compose render            Assemble a template into prompt text
  compose scan              List the placeholders of a template
  compose validate-bundle   Check a bundle for invalid modules and cycles`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRenderCmd(),
		newScanCmd(),
		newValidateBundleCmd(),
	)

	return root
}

// limitFlags holds the resolution budget flags shared by render and
// validate-bundle.
type limitFlags struct {
	maxDepth      int
	maxExpansions int
	maxOutput     string
}

func (l *limitFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&l.maxDepth, "max-depth", composition.DefaultMaxDepth, "maximum module nesting depth")
	f.IntVar(&l.maxExpansions, "max-expansions", composition.DefaultMaxExpansions, "maximum module expansions")
	f.StringVar(&l.maxOutput, "max-output", "1MB", "maximum resolved text size")
}

func (l *limitFlags) limits() (composition.Limits, error) {
	if l.maxDepth < 1 {
		return composition.Limits{}, fmt.Errorf("--max-depth must be at least 1, got %d", l.maxDepth)
	}
	if l.maxExpansions < 1 {
		return composition.Limits{}, fmt.Errorf("--max-expansions must be at least 1, got %d", l.maxExpansions)
	}
	size, err := formatting.ParseBytes(l.maxOutput)
	if err != nil {
		return composition.Limits{}, fmt.Errorf("--max-output: %w", err)
	}
	if size < 1 || size > math.MaxInt {
		return composition.Limits{}, fmt.Errorf("--max-output out of range: %s", l.maxOutput)
	}

	return composition.Limits{
		MaxDepth:      l.maxDepth,
		MaxExpansions: l.maxExpansions,
		MaxOutput:     int(size),
	}, nil
}

// source identifies template input: inline text wins, otherwise a file
// path where "-" reads stdin.
type source struct {
	path   string
	inline string
}

func (s *source) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.path, "template", "t", "-", "template file, - for stdin")
	cmd.Flags().StringVar(&s.inline, "text", "", "inline template text")
}

func (s *source) read(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("text") {
		return s.inline, nil
	}
	if s.path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// loadBundle decodes the bundle at path. An empty path yields an empty
// library.
func loadBundle(path string) (*bundle.Bundle, error) {
	if path == "" {
		return bundle.New(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	b, err := bundle.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// parseBindings turns key=value pairs into bindings. Values may contain
// '=' and may be empty.
func parseBindings(pairs []string) (composition.Bindings, error) {
	bindings := make(composition.Bindings, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("binding %q: want key=value", pair)
		}
		if !composition.IsIdentifier(key) {
			return nil, fmt.Errorf("binding %q: invalid variable name %q", pair, key)
		}
		bindings[key] = value
	}
	return bindings, nil
}
