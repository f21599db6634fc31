// Package config loads the optional per-project .apexusage.kdl file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/discover"
)

// FileName is the config file looked up at the repository root.
const FileName = ".apexusage.kdl"

// Config holds analysis settings. CLI flags override file values.
type Config struct {
	Workers          int   // 0 = GOMAXPROCS
	MaxFileSize      int64 // 0 = unlimited
	RespectGitignore bool
	Exclude          []string
	SkipDirs         []string
	MetadataSuffixes []string
	Classes          []string // Default targets when none are given on the command line
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{}
}

// Load reads FileName from root. A missing file yields Default().
func Load(root string) (*Config, error) {
	return LoadFile(filepath.Join(root, FileName))
}

// LoadFile reads the config at path. A missing file yields Default().
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes KDL config content.
func Parse(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch name := nodeName(n); name {
		case "workers":
			if v, ok := firstIntArg(n); ok {
				cfg.Workers = v
			}
		case "max_file_size":
			if v, ok := firstIntArg(n); ok {
				cfg.MaxFileSize = int64(v)
			}
			if s, ok := firstStringArg(n); ok {
				sz, err := ParseSize(s)
				if err != nil {
					return nil, fmt.Errorf("max_file_size: %w", err)
				}
				cfg.MaxFileSize = sz
			}
		case "respect_gitignore":
			if b, ok := firstBoolArg(n); ok {
				cfg.RespectGitignore = b
			}
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, collectStringArgs(n)...)
		case "skip_dirs":
			cfg.SkipDirs = append(cfg.SkipDirs, collectStringArgs(n)...)
		case "metadata_suffixes":
			cfg.MetadataSuffixes = append(cfg.MetadataSuffixes, collectStringArgs(n)...)
		case "classes":
			cfg.Classes = append(cfg.Classes, collectStringArgs(n)...)
		default:
			return nil, fmt.Errorf("unknown setting %q", name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and glob syntax.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	for _, s := range c.MetadataSuffixes {
		if !strings.HasPrefix(s, ".") {
			return fmt.Errorf("metadata suffix %q must start with '.'", s)
		}
	}
	return nil
}

// DiscoverOptions returns the walk settings.
func (c *Config) DiscoverOptions() discover.Options {
	return discover.Options{
		SkipDirs:         c.SkipDirs,
		Exclude:          c.Exclude,
		MetadataSuffixes: c.MetadataSuffixes,
		RespectGitignore: c.RespectGitignore,
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs accepts both the inline form (exclude "a" "b") and the
// block form (exclude { "a"; "b" }).
func collectStringArgs(n *document.Node) []string {
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, child := range n.Children {
		if s, ok := firstStringArg(child); ok {
			out = append(out, s)
		} else if child.Name != nil {
			if s, ok := child.Name.Value.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// ParseSize handles size strings like "10MB", "500KB", "1GB".
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return num * multiplier, nil
}
