package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and query the corpus index",
	}
	cmd.AddCommand(c.indexBuildCmd(), c.indexSearchCmd())
	return cmd
}

func (c *cli) indexBuildCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed a corpus file and add it to the index",
		Long: `Embed every job text in the input file and add it to the persisted index.
The input is either a JSON array of strings (.json) or one text per line.
An existing index is extended without retraining its clusters.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			texts, err := readCorpusFile(input)
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Retriever.Build(cmd.Context(), texts); err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d texts, %d total, written to %s\n",
				len(texts), a.Retriever.Size(), a.Config.Index.Path)
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "corpus file (.json array or one text per line)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (c *cli) indexSearchCmd() *cobra.Command {
	var (
		query string
		topK  int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print the corpus texts nearest to a query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			hits, err := a.Retriever.Query(cmd.Context(), query, topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"hits": hits})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "query text")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "number of hits")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func readCorpusFile(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var texts []string
		if err := json.NewDecoder(f).Decode(&texts); err != nil {
			return nil, fmt.Errorf("decode corpus %s: %w", path, err)
		}
		return texts, nil
	}
	return readLines(f)
}

// readLines returns the non-blank lines of r, trimmed.
func readLines(r io.Reader) ([]string, error) {
	var texts []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return texts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
