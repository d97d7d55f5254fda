package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/bookchunk/internal/book"
	"github.com/dgallion1/bookchunk/internal/config"
	"github.com/dgallion1/bookchunk/internal/parser"
	"github.com/dgallion1/bookchunk/internal/toc"
)

func newTOCCommand() *cobra.Command {
	var (
		pages    string
		markdown bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "toc <file>",
		Short: "Extract the table of contents from a book's contents pages",
		Long: `Extract the table of contents from the listed physical pages.

Claude is used when ANTHROPIC_API_KEY is set, unless --markdown asks for
the line-based parser.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			labels, err := book.ParsePageList(pages)
			if err != nil {
				return fmt.Errorf("--pages: %w", err)
			}
			if len(labels) == 0 {
				return fmt.Errorf("--pages is required")
			}

			p, err := parser.ForFileWith(args[0], parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext})
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			doc, err := p.Parse(f, args[0])
			if err != nil {
				return err
			}
			text := pagesText(doc.Pages, labels)
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("pages %s are blank", pages)
			}

			var contents book.TableOfContents
			if markdown || cfg.AnthropicAPIKey == "" {
				contents, err = toc.ParseMarkdown([]byte(text))
			} else {
				ex := toc.NewExtractor(cfg.AnthropicAPIKey, cfg.AnthropicModel)
				defer ex.Close()
				contents, err = ex.Extract(cmd.Context(), text)
			}
			if err != nil {
				return err
			}
			return writeTOC(cmd, contents, format)
		},
	}
	cmd.Flags().StringVar(&pages, "pages", "", "Physical pages holding the table of contents, e.g. 3,4")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Use the line-based parser instead of Claude")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml)")
	return cmd
}

func pagesText(pages []book.Page, labels []int) string {
	var parts []string
	for _, l := range labels {
		for _, p := range pages {
			if p.Label == l {
				parts = append(parts, p.Content)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func writeTOC(cmd *cobra.Command, contents book.TableOfContents, format string) error {
	out := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(contents)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(contents)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
