package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tokenfield/pkg/archive"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
	"github.com/matzehuels/tokenfield/pkg/world"
)

// runFlags are the run command's own flags. Everything else comes from the
// merged config.
type runFlags struct {
	yes       bool
	create    bool
	refresh   bool
	sizeCodes bool
}

// runCommand creates the run command, the full tokenize/archive/delete pass.
func (c *CLI) runCommand() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <world>",
		Short: "Tokenize a world's actors, optionally archiving and deleting them",
		Long: `Tokenize a world's actors, optionally archiving and deleting them.

The run command clears the scene's tokens (unless --no-clear), places one
unlinked token per non-player actor, and with --move copies every actor into
the --target archive, mirroring its folder hierarchy. With --delete the
originals are removed afterwards: only the archived ones when --move is set,
all of them otherwise. The world file is saved in place.

Deleting asks for confirmation unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRun(cmd.Context(), args[0], f)
		},
	}

	addLayoutFlags(cmd.Flags())
	cmd.Flags().String("target", pipeline.DefaultArchiveTarget, "archive to copy actors into")
	cmd.Flags().Bool("move", false, "copy every actor into the target archive")
	cmd.Flags().Bool("delete", false, "delete the original actors after the run")
	cmd.Flags().Bool("no-clear", false, "keep the scene's existing tokens")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask before deleting actors")
	cmd.Flags().BoolVar(&f.create, "create", false, "create the target archive if it does not exist")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute the layout even if cached")
	cmd.Flags().BoolVar(&f.sizeCodes, "size-codes", false, "size tokens by the actors' size category instead of their prototype")

	return cmd
}

// runRun executes a full run against a world file.
func (c *CLI) runRun(ctx context.Context, path string, f runFlags) error {
	w, err := world.Open(path)
	if err != nil {
		return err
	}
	opts := c.Config.PipelineOptions()
	opts.Refresh = f.refresh

	var store archive.Store
	if opts.MoveToArchive {
		if archive.Ephemeral(c.Config.Archive) {
			return errors.New(errors.ErrCodeConfiguration,
				"archive %q is discarded when tokenfield exits; pass --archive sqlite:<path> or mongodb://...", c.Config.Archive)
		}
		if store, err = c.openArchive(ctx); err != nil {
			return err
		}
		defer store.Close()
		if f.create {
			if err := ensureArchive(ctx, store, opts.ArchiveTarget); err != nil {
				return err
			}
		}
	}

	if opts.DeleteOriginals && !f.yes {
		ok, err := c.confirmDelete(ctx, w, opts)
		if err != nil {
			return err
		}
		if !ok {
			printInfo("Cancelled; nothing was changed")
			return nil
		}
	}

	deps := c.collaborators(w, store)
	if f.sizeCodes {
		deps.Footprints = pipeline.SizeCodeFootprint{}
	}
	runner, err := c.newRunner(ctx, deps)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, "Tokenizing actors...")
	spinner.Start()
	res, runErr := runner.Execute(ctx, opts)
	if runErr != nil {
		spinner.StopWithError("Run failed")
	} else {
		spinner.StopWithSuccess(fmt.Sprintf("Placed %d tokens", res.Summary.Placed))
	}

	// Stages that completed have already changed the world; keep them.
	if res != nil {
		if err := w.Save(); err != nil {
			return fmt.Errorf("save world %s: %w", path, err)
		}
	}
	if runErr != nil {
		return runErr
	}
	prog.done("run complete", "placed", res.Summary.Placed, "archived", res.Summary.Archived, "deleted", res.Summary.Deleted)

	if len(res.Tokens) > 0 {
		fmt.Println(tokenTable(res))
		printStats(res)
	}
	printFailures(res.Summary.Failures)
	printFile(path)
	if opts.MoveToArchive && res.Summary.Archived > 0 {
		printNewline()
		printNextStep("Inspect the archive", fmt.Sprintf("%s archive tree --archive %s --target %s", appName, c.Config.Archive, opts.ArchiveTarget))
	}
	return nil
}

// collaborators wires a world and an optional archive store into a run.
func (c *CLI) collaborators(w *world.World, store archive.Store) pipeline.Collaborators {
	deps := pipeline.Collaborators{Actors: w, Sink: w}
	if store != nil {
		deps.Archive = store
	}
	return deps
}

// ensureArchive creates target as an actor archive unless it exists.
func ensureArchive(ctx context.Context, store archive.Store, target string) error {
	info, err := store.Inspect(ctx, target)
	if err != nil {
		return err
	}
	if info.Exists {
		return nil
	}
	if err := store.Create(ctx, target, pipeline.KindActor); err != nil {
		return fmt.Errorf("create archive %s: %w", target, err)
	}
	printInfo("Created archive %s", target)
	return nil
}

// confirmDelete asks before a run that deletes actors.
func (c *CLI) confirmDelete(ctx context.Context, w *world.World, opts pipeline.Options) (bool, error) {
	actors, err := w.Actors(ctx)
	if err != nil {
		return false, err
	}
	if len(actors) == 0 {
		return true, nil
	}
	names := make([]string, len(actors))
	for i, a := range actors {
		names[i] = a.Name
	}
	title := fmt.Sprintf("Delete %d actor(s) from the world after tokenizing?", len(actors))
	if opts.MoveToArchive {
		title = fmt.Sprintf("Delete %d actor(s) once they are copied to %s?", len(actors), opts.ArchiveTarget)
	}
	ok, err := confirm(title, names)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeUnsupported, err, "cannot ask for confirmation; pass --yes")
	}
	return ok, nil
}
