package executor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	"taskgraph/internal/logging"
	"taskgraph/internal/pipeline/properties"
	"taskgraph/internal/pipeline/types"
)

// copyEntry is one file selected for copying.
type copyEntry struct {
	src, dst string
}

func (e *Executor) runCopy(action *types.Action, store *properties.Store) error {
	from := action.From
	if from == "" {
		from = "."
	}
	from, err := store.Interpolate(from)
	if err != nil {
		return err
	}
	to, err := store.Interpolate(action.To)
	if err != nil {
		return err
	}
	include, err := store.InterpolateAll(action.Include)
	if err != nil {
		return err
	}
	exclude, err := store.InterpolateAll(action.Exclude)
	if err != nil {
		return err
	}
	from, to = e.resolvePath(from), e.resolvePath(to)

	entries, err := collectCopyEntries(from, to, include, exclude, action.Flatten)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		logging.Warn("copy matched no files", map[string]interface{}{"event": "copy.nomatch", "from": from, "include": include, "exclude": exclude})
		e.writeLog("copy: no files matched under %s", from)
		// to exists after every successful copy, even an empty one
		if err := os.MkdirAll(to, 0755); err != nil {
			return &FileCopyError{Path: to, Err: err}
		}
		return nil
	}

	for _, entry := range entries {
		if err := copyLocalPath(entry.src, entry.dst); err != nil {
			return err
		}
	}
	logging.Info("files copied", map[string]interface{}{"event": "copy.done", "from": from, "to": to, "files": len(entries)})
	e.writeLog("copy: %d file(s) from %s to %s", len(entries), from, to)
	return nil
}

// collectCopyEntries lists every regular file under from that matches an
// include pattern and no exclude pattern. Patterns use gitignore syntax
// relative to from; no include pattern selects every file. Anything already
// under to is skipped.
func collectCopyEntries(from, to string, include, exclude []string, flatten bool) ([]copyEntry, error) {
	info, err := os.Stat(from)
	if err != nil {
		return nil, &FileCopyError{Path: from, Err: err}
	}
	if !info.IsDir() {
		return nil, &FileCopyError{Path: from, Err: errors.New("not a directory")}
	}
	absTo, err := filepath.Abs(to)
	if err != nil {
		return nil, &FileCopyError{Path: to, Err: err}
	}

	var inc, exc *gitignore.GitIgnore
	if len(include) > 0 {
		inc = gitignore.CompileIgnoreLines(include...)
	}
	if len(exclude) > 0 {
		exc = gitignore.CompileIgnoreLines(exclude...)
	}

	var entries []copyEntry
	seen := make(map[string]string)
	walkErr := filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &FileCopyError{Path: path, Err: err}
		}
		if abs, aerr := filepath.Abs(path); aerr == nil && (abs == absTo || strings.HasPrefix(abs, absTo+string(filepath.Separator))) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return &FileCopyError{Path: path, Err: err}
		}
		rp := filepath.ToSlash(rel)
		if inc != nil && !inc.MatchesPath(rp) {
			return nil
		}
		if exc != nil && exc.MatchesPath(rp) {
			return nil
		}

		dst := filepath.Join(to, rel)
		if flatten {
			dst = filepath.Join(to, filepath.Base(rel))
			if prev, dup := seen[dst]; dup {
				return &FileCopyError{Path: path, Err: fmt.Errorf("flatten collides with %s at %s", prev, dst)}
			}
			seen[dst] = path
		}
		entries = append(entries, copyEntry{src: path, dst: dst})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return entries, nil
}

// copyLocalPath copies src to dst, creating parent directories, keeping the
// file mode and verifying the written content by xxhash.
func copyLocalPath(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return &FileCopyError{Path: dst, Err: err}
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return &FileCopyError{Path: src, Err: err}
	}
	defer srcFile.Close()
	srcInfo, err := srcFile.Stat()
	if err != nil {
		return &FileCopyError{Path: src, Err: err}
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return &FileCopyError{Path: dst, Err: err}
	}
	h := xxhash.New()
	if _, err := io.Copy(dstFile, io.TeeReader(srcFile, h)); err != nil {
		dstFile.Close()
		return &FileCopyError{Path: dst, Err: err}
	}
	if err := dstFile.Close(); err != nil {
		return &FileCopyError{Path: dst, Err: err}
	}
	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return &FileCopyError{Path: dst, Err: err}
	}

	written, err := computeXXHash(dst)
	if err != nil {
		return &FileCopyError{Path: dst, Err: err}
	}
	if written != h.Sum64() {
		return &FileCopyError{Path: dst, Err: fmt.Errorf("checksum mismatch after copy (%016x != %016x)", written, h.Sum64())}
	}
	return nil
}

// computeXXHash computes the xxHash of a file
func computeXXHash(filePath string) (uint64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
