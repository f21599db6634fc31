package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/analyzer"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/discover"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/trace"
)

const (
	defaultDebounce = 300 * time.Millisecond
	watchMemoSize   = 50_000
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-run the analysis whenever the project changes",
		ArgsUsage: "[repo] [class...]",
		Description: `Prints a report, then prints a fresh one each time source files under repo
stop changing for the debounce interval. Settings are read once at startup.
Runs until interrupted.`,
		Flags: append(analysisFlags(), &cli.DurationFlag{
			Name:  "debounce",
			Usage: "quiet period before re-running after a change",
			Value: defaultDebounce,
		}),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	inv, err := newInvocation(c)
	if err != nil {
		return exitError(err)
	}
	if inv.memo, err = analyzer.NewMemo(watchMemoSize); err != nil {
		return exitError(err)
	}

	first := true
	emit := func() error {
		out, err := inv.execute(c.Context)
		if err != nil {
			if first {
				return err
			}
			inv.sink.Warn(err.Error())
			return nil
		}
		first = false
		_, err = c.App.Writer.Write(out)
		return err
	}

	root, err := filepath.Abs(inv.root)
	if err != nil {
		return exitError(err)
	}
	err = watch(c.Context, root, inv.cfg.DiscoverOptions(), c.Duration("debounce"), inv.sink, emit)
	if err != nil && !errors.Is(err, context.Canceled) {
		return exitError(err)
	}
	return nil
}

// watch calls emit once, then again each time the tree under root has been
// quiet for debounce after a relevant change. It returns ctx.Err() when ctx
// is done, or the first error from emit.
func watch(ctx context.Context, root string, opts discover.Options, debounce time.Duration, sink trace.Sink, emit func() error) error {
	sink = trace.OrNop(sink)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return fmt.Errorf("%w: watching %s: %v", analyzer.ErrRepositoryNotFound, root, err)
	}
	addTree(w, root, root, opts)

	if err := emit(); err != nil {
		return err
	}

	classifier := discover.NewClassifier(opts.MetadataSuffixes)
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					addTree(w, root, ev.Name, opts)
					fire = time.After(debounce)
					continue
				}
			}
			if relevant(classifier, root, ev) {
				fire = time.After(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			sink.Warn(fmt.Sprintf("watch: %v", err))

		case <-fire:
			fire = nil
			sink.Info("change detected, re-running analysis")
			if err := emit(); err != nil {
				return err
			}
		}
	}
}

// addTree watches dir and every directory below it that a walk would not
// prune. fsnotify is not recursive.
func addTree(w *fsnotify.Watcher, root, dir string, opts discover.Options) {
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return filepath.SkipDir
			}
			if opts.SkipsDir(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		_ = w.Add(p)
		return nil
	})
}

// relevant reports whether ev can change a report: a candidate source file,
// .gitignore, or the removal of something that may have been a directory.
func relevant(c *discover.Classifier, root string, ev fsnotify.Event) bool {
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	if _, ok := c.Classify(rel); ok {
		return true
	}
	if path.Base(rel) == ".gitignore" {
		return true
	}
	return ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && path.Ext(rel) == ""
}
