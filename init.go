package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/config"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/discover"
)

const (
	sentinelStart = "// apexusage:start"
	sentinelEnd   = "// apexusage:end"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write the default settings block to " + config.FileName,
		ArgsUsage: "[path]",
		Description: `Writes the default apexusage settings wrapped in sentinel comments so the
block can be updated in place on later runs without touching surrounding
content. Settings placed after the block override it. Creates the file if it
does not exist.

path defaults to ./` + config.FileName + `.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "print what would be written without modifying the file",
			},
		},
		Action: func(c *cli.Context) error {
			return runInit(c.Args().First(), c.Bool("dry-run"), c.App.Writer, c.App.ErrWriter)
		},
	}
}

// runInit writes (or updates) the settings block in the config file at path.
func runInit(path string, dryRun bool, stdout, stderr io.Writer) error {
	section := generateSection()

	// --dry-run with no path: just print the section itself.
	if dryRun && path == "" {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	if path == "" {
		path = config.FileName
	}

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if _, err := config.Parse(updated); err != nil {
		return fmt.Errorf("%s would not be a valid config: %w", path, err)
	}

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote apexusage settings to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped default settings.
func generateSection() string {
	var b strings.Builder
	b.WriteString(sentinelStart + "\n")
	b.WriteString(`// Managed by "apexusage init". Edits inside this block are replaced on the
// next run; add overrides below the end marker instead.

// Concurrent file scanners, 0 = GOMAXPROCS.
workers 0

// Skip files larger than this, 0 = unlimited. Accepts "500KB", "2MB".
max_file_size 0

// Skip files matched by the root .gitignore.
respect_gitignore false

// Doublestar globs against repo-relative paths, e.g. "**/__tests__/**".
exclude

// Extra directory names to prune.
skip_dirs

// File suffixes scanned as metadata.
metadata_suffixes`)
	for _, s := range discover.DefaultMetadataSuffixes {
		fmt.Fprintf(&b, " %q", s)
	}
	b.WriteString(`

// Target classes used when none are given on the command line.
classes
`)
	b.WriteString(sentinelEnd)
	return b.String()
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or prepending if not. It is a pure function for easy
// testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	return section + "\n\n" + content
}
