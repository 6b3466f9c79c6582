package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrSourceMissing     = errors.New("source directory missing")
	ErrUnreadableFile    = errors.New("unreadable file")
	ErrTraversalRejected = errors.New("path traversal rejected")
)

// Entry describes a single file within a snapshot manifest.
// Path is relative to the snapshot root, forward-slash separated.
type Entry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest is the ordered list of files in a snapshot. Entries are
// sorted lexicographically by path, so two builds over identical
// content produce identical manifests.
type Manifest []Entry

// Build walks root and produces a manifest of every regular file
// underneath it. Any unreadable file aborts the whole build: a partial
// backup presented as complete is worse than a visible failure.
// Symlinks that resolve outside root abort with ErrTraversalRejected.
// Symlinks to files inside root are hashed like the file they point
// at; symlinked directories are not descended into, so content only
// reachable through a directory link is absent from the manifest.
func Build(root string) (Manifest, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, root)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceMissing, root)
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var manifest Manifest

	err = filepath.WalkDir(rootAbs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnreadableFile, p, walkErr)
		}
		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUnreadableFile, p, err)
			}
			if !within(rootAbs, resolved) {
				return fmt.Errorf("%w: symlink %s resolves outside %s", ErrTraversalRejected, p, rootAbs)
			}
			target, err := os.Stat(resolved)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUnreadableFile, p, err)
			}
			if target.IsDir() {
				// Not descended into; the subtree is already walked
				// when it lives inside root under its real name
				return nil
			}
		} else if !d.Type().IsRegular() {
			// Sockets, devices etc. have no place in a site tree
			return nil
		}

		rel, err := filepath.Rel(rootAbs, p)
		if err != nil {
			return err
		}

		sum, size, err := hashFile(p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnreadableFile, p, err)
		}

		manifest = append(manifest, Entry{
			Path:   filepath.ToSlash(rel),
			Size:   size,
			SHA256: sum,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(manifest, func(i, j int) bool {
		return manifest[i].Path < manifest[j].Path
	})

	return manifest, nil
}

// Equal reports whether two manifests describe identical content.
func (m Manifest) Equal(other Manifest) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// TotalBytes returns the aggregate size of all entries.
func (m Manifest) TotalBytes() int64 {
	var total int64
	for _, e := range m {
		total += e.Size
	}
	return total
}

// SecureJoin joins a forward-slash relative path onto root, rejecting
// absolute paths and any path that would escape root. Restore uses it
// to guard against crafted remote keys like "../../etc/passwd".
func SecureJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrTraversalRejected)
	}

	native := filepath.FromSlash(rel)
	if filepath.IsAbs(native) || filepath.VolumeName(native) != "" {
		return "", fmt.Errorf("%w: %s", ErrTraversalRejected, rel)
	}

	joined := filepath.Join(root, native)
	if !within(root, joined) {
		return "", fmt.Errorf("%w: %s", ErrTraversalRejected, rel)
	}

	return joined, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}
