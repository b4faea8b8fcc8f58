package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/linkminer/pkg/linkminer/config"
)

var version = "dev"

// cli holds the flags shared by every command.
type cli struct {
	configPath string
	kbPath     string
	verbose    bool
	quiet      bool

	logger  *slog.Logger
	rootCmd *cobra.Command
}

func main() {
	if err := newCLI().rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newCLI() *cli {
	c := &cli{}
	c.rootCmd = &cobra.Command{
		Use:          "linkminer",
		Short:        "Find the topics of documents and link them to knowledge base articles",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.initLogging()
		},
	}

	flags := c.rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML settings file")
	flags.StringVar(&c.kbPath, "kb", "", "Knowledge base snapshot (overrides the settings file)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "Hide progress bars")

	c.rootCmd.AddCommand(
		c.newTrainCommand(),
		c.newTestCommand(),
		c.newSplitCommand(),
		c.newWikifyCommand(),
		c.newCompareCommand(),
		c.newServeCommand(),
		c.newStoplistCommand(),
	)
	return c
}

func (c *cli) initLogging() {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)
}

// load reads the settings and the knowledge base.
func (c *cli) load(ctx context.Context) (*config.Components, error) {
	settings := config.DefaultSettings()
	if c.configPath != "" {
		s, err := config.LoadSettings(c.configPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		settings = s
	}
	if c.kbPath != "" {
		settings.KnowledgeBase = c.kbPath
	}

	c.logger.Info("loading knowledge base", "path", settings.KnowledgeBase)
	comp, err := (&config.Loader{Settings: settings, Quiet: c.quiet, Logger: c.logger}).Load(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("knowledge base ready", "articles", comp.KB.TotalArticles())
	return comp, nil
}
