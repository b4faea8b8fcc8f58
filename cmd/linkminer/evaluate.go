package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cognicore/linkminer/internal/corpus"
	"github.com/cognicore/linkminer/pkg/linkminer/classify"
	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

func (c *cli) newTestCommand() *cobra.Command {
	var snippet string

	cmd := &cobra.Command{
		Use:       "test <disambiguator|linker> <articles>",
		Short:     "Measure precision and recall against the links of held-out articles",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"disambiguator", "linker"},
		Example:   `  linkminer test disambiguator test.jsonl --snippet first_paragraph`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			summary, err := c.test(ctx, args[0], args[1], wikitext.ParseSnippetMode(snippet))
			if err != nil {
				return err
			}
			fmt.Printf("Articles:  %d\n", summary.Items)
			fmt.Printf("Precision: %.1f%%\n", summary.Precision()*100)
			fmt.Printf("Recall:    %.1f%%\n", summary.Recall()*100)
			fmt.Printf("F-measure: %.1f%%\n", summary.FMeasure()*100)
			fmt.Printf("Total:     %s\n", summary.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&snippet, "snippet", "all", "Part of each article to use: all, first_sentence or first_paragraph")
	return cmd
}

func (c *cli) test(ctx context.Context, target, articles string, snippet wikitext.SnippetMode) (*classify.Summary, error) {
	if target != "disambiguator" && target != "linker" {
		return nil, fmt.Errorf("unknown test target %q", target)
	}

	comp, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	defer comp.Close()

	w, err := c.wikifier(comp, true, target == "linker")
	if err != nil {
		return nil, err
	}
	ids, err := corpus.LoadFile(articles, comp.KB, c.logger)
	if err != nil {
		return nil, err
	}

	c.logger.Info("testing", "target", target, "articles", len(ids))
	if target == "disambiguator" {
		return w.Disambiguator().Test(ctx, ids, snippet)
	}
	return w.LinkWeighter().Test(ctx, ids, snippet)
}

func (c *cli) newSplitCommand() *cobra.Command {
	var (
		fraction  float64
		seed      uint64
		trainPath string
		testPath  string
	)

	cmd := &cobra.Command{
		Use:     "split <articles>",
		Short:   "Split an article set into training and test sets",
		Args:    cobra.ExactArgs(1),
		Example: `  linkminer split articles.txt --test-fraction 0.2 --train train.jsonl --test test.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var titles corpus.TitleResolver
			if c.configPath != "" || c.kbPath != "" {
				comp, err := c.load(cmd.Context())
				if err != nil {
					return err
				}
				defer comp.Close()
				titles = comp.KB
			}

			ids, err := corpus.LoadFile(args[0], titles, c.logger)
			if err != nil {
				return err
			}
			train, test := corpus.Split(ids, fraction, seed)
			if err := writeFile(trainPath, func(w io.Writer) error { return corpus.Write(w, train) }); err != nil {
				return err
			}
			if err := writeFile(testPath, func(w io.Writer) error { return corpus.Write(w, test) }); err != nil {
				return err
			}
			c.logger.Info("split written", "train", len(train), "test", len(test))
			return nil
		},
	}

	cmd.Flags().Float64Var(&fraction, "test-fraction", 0.2, "Share of articles held out for testing")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Shuffle seed")
	cmd.Flags().StringVar(&trainPath, "train", "train.jsonl", "Training set output")
	cmd.Flags().StringVar(&testPath, "test", "test.jsonl", "Test set output")
	return cmd
}
