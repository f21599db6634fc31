// Package cache stores rendered analysis output keyed by a fingerprint of
// everything that can change it.
package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

const header = "apexusage-cache"

// Fingerprint hashes the target classes, caller settings and the path, size
// and modification time of every candidate file.
func Fingerprint(root string, classes []string, files []model.FileEntry, settings ...string) uint64 {
	d := xxhash.New()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = d.WriteString(p)
			_, _ = d.Write([]byte{0})
		}
	}

	write(classes...)
	write("--")
	write(settings...)
	write("--")
	for _, f := range files {
		write(f.Path, string(f.Kind))
		fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			write("missing")
			continue
		}
		write(strconv.FormatInt(fi.Size(), 10), strconv.FormatInt(fi.ModTime().UnixNano(), 10))
	}
	return d.Sum64()
}

// Read returns the cached payload at path if it was written for key.
func Read(path string, key uint64) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	line, payload, ok := bytes.Cut(data, []byte("\n"))
	if !ok || string(line) != headerLine(key) {
		return nil, false
	}
	return payload, true
}

// Write stores payload for key at path, replacing any previous content.
func Write(path string, key uint64, payload []byte) error {
	var buf bytes.Buffer
	buf.WriteString(headerLine(key))
	buf.WriteByte('\n')
	buf.Write(payload)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Key formats a fingerprint for display.
func Key(key uint64) string {
	return strconv.FormatUint(key, 16)
}

func headerLine(key uint64) string {
	return header + " " + Key(key)
}
