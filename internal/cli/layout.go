package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
	"github.com/matzehuels/tokenfield/pkg/render"
	"github.com/matzehuels/tokenfield/pkg/world"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// layoutFlags are the layout command's own flags.
type layoutFlags struct {
	output    string
	grid      bool
	refresh   bool
	watch     bool
	sizeCodes bool
}

// layoutCommand creates the layout command, a dry run of the placement.
func (c *CLI) layoutCommand() *cobra.Command {
	var f layoutFlags

	cmd := &cobra.Command{
		Use:   "layout <world>",
		Short: "Preview where a run would place each actor's token",
		Long: `Preview where a run would place each actor's token.

The layout command reads a world file (.json, .toml or .yaml), packs its
non-player actors into the scene's padded area and prints the result. Nothing
is written back to the world. With --out the placement is also drawn as an
SVG, PNG or PDF preview, chosen by the file extension.

With --watch the preview is redrawn every time the world file changes.

Layouts are cached locally, keyed by the actors' footprints and the spacing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], f)
		},
	}

	addLayoutFlags(cmd.Flags())
	cmd.Flags().StringVarP(&f.output, "out", "o", "", "write a preview (.svg, .png or .pdf)")
	cmd.Flags().BoolVar(&f.grid, "grid", false, "draw grid lines in the preview")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute the layout even if cached")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "redraw when the world file changes")
	cmd.Flags().BoolVar(&f.sizeCodes, "size-codes", false, "size tokens by the actors' size category instead of their prototype")

	return cmd
}

// runLayout previews the placement of a world's actors.
func (c *CLI) runLayout(ctx context.Context, path string, f layoutFlags) error {
	var deps pipeline.Collaborators
	if f.sizeCodes {
		deps.Footprints = pipeline.SizeCodeFootprint{}
	}
	runner, err := c.newRunner(ctx, deps)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := c.Config.PipelineOptions()
	opts.Refresh = f.refresh

	if !f.watch {
		if err := c.preview(ctx, runner, path, f, opts); err != nil {
			return err
		}
		printNewline()
		printNextStep("Place the tokens", appName+" run "+path)
		return nil
	}

	// A broken intermediate save must not end the watch.
	redraw := func() {
		if err := c.preview(ctx, runner, path, f, opts); err != nil {
			printError("%s", errors.UserMessage(err))
		}
	}
	redraw()
	return c.watchFile(ctx, path, redraw)
}

// preview lays out the world at path once and prints the placement.
func (c *CLI) preview(ctx context.Context, runner *pipeline.Runner, path string, f layoutFlags, opts pipeline.Options) error {
	w, err := world.Open(path)
	if err != nil {
		return err
	}
	scene, err := w.Scene(ctx)
	if err != nil {
		return err
	}
	actors, err := w.Actors(ctx)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %d actors...", len(actors)))
	spinner.Start()
	res, err := runner.Preview(ctx, scene, actors, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	spinner.Stop()

	if len(res.Tokens) == 0 {
		printWarning("No non-player actors to place")
		return nil
	}

	printSuccess("Layout of %s on %s", StyleNumber.Render(fmt.Sprint(len(res.Tokens))), StyleValue.Render(sceneName(scene.Name)))
	fmt.Println(tokenTable(res))
	printStats(res)
	if res.Overflow != nil {
		printWarning("%d actor(s) do not fit: %s", res.Summary.Skipped, errors.UserMessage(res.Overflow))
	}

	if f.output == "" {
		return nil
	}
	svgOpts := []render.SVGOption{render.WithTitle(sceneName(scene.Name))}
	if f.grid {
		svgOpts = append(svgOpts, render.WithGrid())
	}
	data, err := render.ForPath(ctx, render.SVG(res.Layout, res.Area, scene.GridSize, svgOpts...), f.output)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.output, data, 0o644); err != nil {
		return fmt.Errorf("write preview %s: %w", f.output, err)
	}
	printFile(f.output)
	return nil
}

// watchFile calls onChange after every write to path until ctx is done.
// The parent directory is watched since editors often save by replacing
// the file.
func (c *CLI) watchFile(ctx context.Context, path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	printInfo("Watching %s for changes (Ctrl-C to stop)", path)

	var debounce *time.Timer
	changed := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, _ := filepath.Abs(event.Name); name != abs {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
		case <-changed:
			c.Logger.Debug("world changed", "path", path)
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watcher error", "err", err)
		}
	}
}

func sceneName(name string) string {
	if name == "" {
		return "scene"
	}
	return name
}
