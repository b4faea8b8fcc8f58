package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/linkminer/pkg/linkminer/config"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/stoplist"
)

func (c *cli) newCompareCommand() *cobra.Command {
	var byID bool

	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Measure how related two terms or two articles are",
		Args:  cobra.ExactArgs(2),
		Example: `  linkminer compare plane airport
  linkminer compare --ids 2 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			defer comp.Close()

			engine, err := comp.NewEngine()
			if err != nil {
				return err
			}

			if byID {
				a, errA := strconv.Atoi(args[0])
				b, errB := strconv.Atoi(args[1])
				if errA != nil || errB != nil {
					return fmt.Errorf("--ids needs two article ids: %w", internalerr.ErrInvalidInput)
				}
				fmt.Printf("%.4f\n", engine.Relatedness(a, b))
				return nil
			}

			cmp := engine.CompareTerms(args[0], args[1])
			if !cmp.Found {
				fmt.Printf("%q and %q are not known anchors\n", args[0], args[1])
				return nil
			}
			fmt.Printf("%.4f\t%s\t%s\n", cmp.Relatedness, cmp.SenseA.Title, cmp.SenseB.Title)
			return nil
		},
	}

	cmd.Flags().BoolVar(&byID, "ids", false, "Compare article ids instead of terms")
	return cmd
}

func (c *cli) newStoplistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stoplist",
		Short: "Maintain the phrases never treated as mentions",
	}
	cmd.AddCommand(c.newStoplistSuggestCommand())
	return cmd
}

func (c *cli) newStoplistSuggestCommand() *cobra.Command {
	var (
		th    = stoplist.DefaultThresholds()
		merge bool
	)

	cmd := &cobra.Command{
		Use:   "suggest <phrases>",
		Short: "Suggest frequent, rarely linked phrases as stopwords",
		Long: `Reads one phrase per line, looks up how often each is seen and linked,
and prints a stoplist YAML document with the phrases that qualify.`,
		Args:    cobra.ExactArgs(1),
		Example: `  linkminer stoplist suggest common-words.txt --merge > stoplist.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			defer comp.Close()

			phrases, err := readLines(args[0])
			if err != nil {
				return err
			}

			stats := make([]stoplist.Stats, 0, len(phrases))
			for _, p := range phrases {
				a, ok := comp.KB.Anchor(p)
				if !ok {
					continue
				}
				stats = append(stats, stoplist.Stats{
					Phrase:          p,
					OccCount:        a.OccCount,
					LinkProbability: a.LinkProbability(),
				})
			}

			candidates := comp.Stoplist.SuggestCandidates(stats, th)
			c.logger.Info("stopword candidates", "phrases", len(phrases), "known", len(stats), "suggested", len(candidates))

			var out config.Stoplist
			if merge {
				out.Terms = comp.Stoplist.All()
			}
			for _, cand := range candidates {
				c.logger.Debug("candidate", "phrase", cand.Phrase, "score", cand.Score,
					"link_probability", cand.Reason.LinkProbability, "occurrences", cand.Reason.OccCount)
				out.Terms = append(out.Terms, cand.Phrase)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().Float64Var(&th.MaxLinkProbability, "max-link-probability", th.MaxLinkProbability, "Phrases linked more often are kept")
	cmd.Flags().Int64Var(&th.MinOccurrences, "min-occurrences", th.MinOccurrences, "Phrases seen less often are kept")
	cmd.Flags().BoolVar(&merge, "merge", false, "Include the configured stoplist in the output")
	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
