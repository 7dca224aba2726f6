package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/livedoc/internal/config"
)

const (
	sentinelStart = "# livedoc:start"
	sentinelEnd   = "# livedoc:end"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// newInitCmd implements `livedoc init`, which writes a starter livedoc.toml
// and a .gitignore block for livedoc's generated state.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		dryRun bool
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter livedoc.toml",
		Long: `Write a starter livedoc.toml describing dir (default: the current directory)
as the default repo, and add livedoc's generated paths to dir/.gitignore.
The .gitignore entries are wrapped in sentinel comments so they can be
updated in place on later runs without touching surrounding content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(dir, dryRun, force, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying any file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing livedoc.toml")
	return cmd
}

func runInit(dir string, dryRun, force bool, stdout, stderr io.Writer) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}

	cfgPath := filepath.Join(abs, config.FileName)
	content := generateConfig(abs)
	if _, err := config.Parse(content, cfgPath); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if dryRun {
		_, _ = fmt.Fprint(stdout, content)
		return nil
	}

	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", cfgPath, err)
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", cfgPath, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote %s\n", cfgPath)

	ignorePath := filepath.Join(abs, ".gitignore")
	existing, err := os.ReadFile(ignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", ignorePath, err)
	}
	if err := os.WriteFile(ignorePath, []byte(applySection(string(existing), ignoreSection())), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}
	_, _ = fmt.Fprintf(stderr, "updated %s\n", ignorePath)
	return nil
}

// generateConfig returns a starter configuration for the repo at dir. The
// docs list names whichever of docs/ and README.md exist.
func generateConfig(dir string) string {
	id := strings.Trim(unsafeIDChars.ReplaceAllString(filepath.Base(dir), "-"), "-")
	if id == "" {
		id = "main"
	}

	var docs []string
	if fi, err := os.Stat(filepath.Join(dir, "docs")); err == nil && fi.IsDir() {
		docs = append(docs, `"docs"`)
	}
	if _, err := os.Stat(filepath.Join(dir, "README.md")); err == nil {
		docs = append(docs, `"README.md"`)
	}

	var b strings.Builder
	b.WriteString(`# livedoc configuration. See "livedoc --help".
store     = ".livedoc/livedoc.db"
cache_dir = ".livedoc/cache"
out_dir   = "build/docs"
doc_extensions = [".md"]

[[repo]]
`)
	fmt.Fprintf(&b, "id         = %q\n", id)
	b.WriteString("root       = \".\"\n")
	fmt.Fprintf(&b, "name       = %q\n", filepath.Base(dir))
	b.WriteString("visibility = \"public\"   # public | unlisted | private\n")
	b.WriteString("default    = true\n")
	if len(docs) > 0 {
		fmt.Fprintf(&b, "docs       = [%s]\n", strings.Join(docs, ", "))
	}
	b.WriteString(`
# Extra comment prefixes by file extension.
# [comments]
# ".tf" = "#"
`)
	return b.String()
}

// ignoreSection returns the sentinel-wrapped .gitignore block.
func ignoreSection() string {
	return sentinelStart + "\n.livedoc/\nbuild/docs/\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) > 0 {
		content += "\n"
	}
	return content + section + "\n"
}
