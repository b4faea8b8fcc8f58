package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/linkminer/internal/corpus"
	"github.com/cognicore/linkminer/pkg/linkminer"
	"github.com/cognicore/linkminer/pkg/linkminer/config"
	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
	"github.com/cognicore/linkminer/pkg/linkminer/wikitext"
)

// classifier is the training surface shared by the disambiguator and the
// link weighter.
type classifier interface {
	Train(ctx context.Context, articles []int, snippet wikitext.SnippetMode) error
	BuildClassifier() error
	SaveTrainingData(w io.Writer) error
	LoadTrainingData(r io.Reader) error
	SaveModel(w io.Writer) error
}

type trainFlags struct {
	snippet  string
	model    string
	dataOut  string
	dataIn   string
	articles string
}

func (c *cli) newTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the disambiguation and link classifiers",
	}
	cmd.AddCommand(
		c.newTrainTargetCommand("disambiguator", "Train the sense classifier on linked articles"),
		c.newTrainTargetCommand("linker", "Train the link classifier; needs a disambiguation model"),
	)
	return cmd
}

func (c *cli) newTrainTargetCommand(target, short string) *cobra.Command {
	var f trainFlags

	cmd := &cobra.Command{
		Use:   target + " [articles]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		Example: `  linkminer train ` + target + ` train.jsonl --model ` + target + `.json
  linkminer train ` + target + ` --from-data ` + target + `.csv --model ` + target + `.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.articles = args[0]
			}
			if f.articles == "" && f.dataIn == "" {
				return fmt.Errorf("need an article set or --from-data: %w", internalerr.ErrInvalidInput)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return c.train(ctx, target, f)
		},
	}

	cmd.Flags().StringVar(&f.snippet, "snippet", "all", "Part of each article to use: all, first_sentence or first_paragraph")
	cmd.Flags().StringVar(&f.model, "model", "", "Where to write the model (defaults to the path in the settings)")
	cmd.Flags().StringVar(&f.dataOut, "data", "", "Also write the training table as CSV")
	cmd.Flags().StringVar(&f.dataIn, "from-data", "", "Fit on a CSV training table instead of mining articles")
	return cmd
}

func (c *cli) train(ctx context.Context, target string, f trainFlags) error {
	comp, err := c.load(ctx)
	if err != nil {
		return err
	}
	defer comp.Close()

	modelPath := f.model
	if modelPath == "" {
		if target == "disambiguator" {
			modelPath = comp.Settings.Disambiguation.Model
		} else {
			modelPath = comp.Settings.Linking.Model
		}
	}
	if modelPath == "" {
		return fmt.Errorf("no model path for the %s: %w", target, internalerr.ErrInvalidConfig)
	}

	w, err := c.wikifier(comp, target == "linker", false)
	if err != nil {
		return err
	}

	var cl classifier = w.Disambiguator()
	if target == "linker" {
		if !w.Disambiguator().Trained() {
			return fmt.Errorf("linker training needs a disambiguation model: %w", internalerr.ErrNotTrained)
		}
		cl = w.LinkWeighter()
	}

	start := time.Now()
	if f.dataIn != "" {
		if err := readFile(f.dataIn, cl.LoadTrainingData); err != nil {
			return fmt.Errorf("load training data: %w", err)
		}
	} else {
		ids, err := corpus.LoadFile(f.articles, comp.KB, c.logger)
		if err != nil {
			return err
		}
		c.logger.Info("training", "target", target, "articles", len(ids), "snippet", f.snippet)
		if err := cl.Train(ctx, ids, wikitext.ParseSnippetMode(f.snippet)); err != nil {
			return err
		}
	}

	if f.dataOut != "" {
		if err := writeFile(f.dataOut, cl.SaveTrainingData); err != nil {
			return fmt.Errorf("save training data: %w", err)
		}
		c.logger.Info("training data saved", "path", f.dataOut)
	}

	if err := cl.BuildClassifier(); err != nil {
		return err
	}
	if err := writeFile(modelPath, cl.SaveModel); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	c.logger.Info("model saved", "target", target, "path", modelPath, "duration", time.Since(start))
	return nil
}

// wikifier builds a Wikifier over comp, loading only the requested
// models.
func (c *cli) wikifier(comp *config.Components, disambigModel, linkModel bool) (*linkminer.Wikifier, error) {
	settings := *comp.Settings
	if !disambigModel {
		settings.Disambiguation.Model = ""
	}
	if !linkModel {
		settings.Linking.Model = ""
	}
	scoped := *comp
	scoped.Settings = &settings
	return linkminer.FromComponents(&scoped)
}

func writeFile(path string, save func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readFile(path string, load func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return load(f)
}
