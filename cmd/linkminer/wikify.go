package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/linkminer/pkg/linkminer"
	"github.com/cognicore/linkminer/pkg/linkminer/tagging"
)

type wikifyFlags struct {
	source         string
	minProbability float64
	repeat         string
	banned         string
	baseURL        string
	outDir         string
	workers        int
}

// apply overrides the defaults with the flags the user set.
func (f wikifyFlags) apply(opts linkminer.WikifyOptions, changed func(name string) bool) (linkminer.WikifyOptions, error) {
	if changed("source") {
		opts.Source = f.source
	}
	if changed("min-probability") {
		opts.MinProbability = f.minProbability
	}
	if changed("repeat") {
		mode, err := tagging.ParseRepeatMode(f.repeat)
		if err != nil {
			return opts, err
		}
		opts.RepeatMode = mode
	}
	if changed("base-url") {
		opts.BaseURL = f.baseURL
	}
	opts.BannedTopics = f.banned
	return opts, nil
}

func (c *cli) newWikifyCommand() *cobra.Command {
	var f wikifyFlags

	cmd := &cobra.Command{
		Use:   "wikify [files...]",
		Short: "Add links to documents; reads stdin when no file is given",
		Example: `  echo "The carpenter used a plane" | linkminer wikify -c linkminer.yaml
  linkminer wikify -c linkminer.yaml --out-dir linked/ pages/*.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comp, err := c.load(ctx)
			if err != nil {
				return err
			}
			defer comp.Close()

			if len(args) == 0 {
				w, err := c.wikifier(comp, true, true)
				if err != nil {
					return err
				}
				opts, err := f.apply(w.Defaults(), cmd.Flags().Changed)
				if err != nil {
					return err
				}
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				res, err := w.Wikify(string(data), opts)
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), res.Markup)
				return err
			}

			workers := min(max(f.workers, 1), len(args))
			pool := make(chan *linkminer.Wikifier, workers)
			var opts linkminer.WikifyOptions
			for i := range workers {
				w, err := c.wikifier(comp, true, true)
				if err != nil {
					return err
				}
				if i == 0 {
					if opts, err = f.apply(w.Defaults(), cmd.Flags().Changed); err != nil {
						return err
					}
				}
				pool <- w
			}

			outputs, err := wikifyFiles(ctx, pool, workers, args, opts, f.outDir)
			if err != nil {
				return err
			}
			for _, out := range outputs {
				if _, err := io.WriteString(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.source, "source", "auto", "Input markup: plain, html, wiki or auto")
	cmd.Flags().Float64Var(&f.minProbability, "min-probability", 0.5, "Lowest topic weight that gets linked")
	cmd.Flags().StringVar(&f.repeat, "repeat", "first_in_region", "Which mentions to link: all, first or first_in_region")
	cmd.Flags().StringVar(&f.banned, "banned", "", "';' separated ids or titles never to link")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "https://en.wikipedia.org", "Link target prefix for html input")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Write results into this directory instead of stdout")
	cmd.Flags().IntVar(&f.workers, "workers", runtime.NumCPU(), "Documents processed in parallel")
	return cmd
}

// wikifyFiles links every file with the wikifiers in pool. Each worker
// holds one wikifier, so caches are never shared. Results are written to
// outDir when set, otherwise returned in input order.
func wikifyFiles(ctx context.Context, pool chan *linkminer.Wikifier, workers int, files []string, opts linkminer.WikifyOptions, outDir string) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	outputs := make([]string, len(files))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w := <-pool
			defer func() { pool <- w }()

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			res, err := w.Wikify(string(data), opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if outDir == "" {
				outputs[i] = res.Markup
				return nil
			}
			return os.WriteFile(filepath.Join(outDir, filepath.Base(path)), []byte(res.Markup), 0644)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if outDir != "" {
		return nil, nil
	}
	return outputs, nil
}
