// Package authormap turns the flattened identity stream of one scan into the
// final author mapping artifact: deduplicated by canonical id, sorted by
// account name, rendered one line per identity as
//
//	DOMAIN\accountname = Display Name <email@example.org>
package authormap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"authormap/internal/directory"
)

// Build deduplicates and orders the scanned identities. Deduplication is
// keyed on CanonicalID and first-wins: later sightings of the same id are
// dropped, not merged, so the first-encountered display name and mail address
// survive. The result is sorted by AccountName ascending under byte-wise
// comparison; the sort is stable, so ties keep first-seen order.
func Build(scanned []directory.Identity) []directory.Identity {
	seen := make(map[string]bool, len(scanned))
	entries := make([]directory.Identity, 0, len(scanned))

	for _, identity := range scanned {
		if seen[identity.CanonicalID] {
			continue
		}
		seen[identity.CanonicalID] = true
		entries = append(entries, identity)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AccountName < entries[j].AccountName
	})

	return entries
}

// FormatLine renders one identity in the mapping line format. Fields are
// emitted verbatim: no escaping is applied, and empty display names or mail
// addresses pass through as-is.
func FormatLine(identity directory.Identity) string {
	return fmt.Sprintf("%s\\%s = %s <%s>",
		identity.Domain,
		identity.AccountName,
		identity.DisplayName,
		identity.MailAddress,
	)
}

// Render returns the formatted mapping lines in entry order.
func Render(entries []directory.Identity) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, FormatLine(entry))
	}
	return lines
}

// Write streams the formatted mapping to w, one line per entry.
func Write(w io.Writer, entries []directory.Identity) error {
	bw := bufio.NewWriter(w)
	for _, entry := range entries {
		if _, err := fmt.Fprintln(bw, FormatLine(entry)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the mapping to path atomically: the content goes to a
// temporary file in the destination directory and replaces any existing file
// only once fully written, so a failed run never truncates a previous
// mapping.
func WriteFile(path string, entries []directory.Identity) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".authormap-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := Write(tmp, entries); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write mapping: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync mapping: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set mapping permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace mapping file: %w", err)
	}

	return nil
}
