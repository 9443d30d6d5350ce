package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(path string) {
	utils.UncheckedErrorFunc(func() error {
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	})
}

// SafeJoinDir joins parent and name, failing when the result would leave parent.
func SafeJoinDir(parent, subdir string) (string, error) {
	res := filepath.Join(parent, subdir)
	rel, err := filepath.Rel(parent, res)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return res, errors.Errorf("unsafe path join: '%s' with '%s'", parent, subdir)
	}
	return res, nil
}

// ReplaceExt swaps the extension of path for ext. ext may be given with or without the leading dot.
func ReplaceExt(path, ext string) string {
	ext = "." + strings.TrimPrefix(ext, ".")
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// BaseName returns the file name of path without directory or extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ModTime returns the modification time of path. The boolean is false when the file does not exist.
func ModTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if info.IsDir() {
		return time.Time{}, false, errors.Errorf("%q is a directory", path)
	}
	return info.ModTime(), true, nil
}

// TempSibling returns a unique, not yet existing path in the same directory as path. The
// extension of path is kept so format detection keeps working on the temporary file.
func TempSibling(path string) string {
	dir, file := filepath.Split(path)
	ext := filepath.Ext(file)
	name := strings.TrimSuffix(file, ext)
	return filepath.Join(dir, "."+name+".tmp-"+uuid.NewString()[:8]+ext)
}

// RenameIntoPlace atomically replaces dst with src. Both must be on the same filesystem.
func RenameIntoPlace(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "cannot create directory for %q", dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return errors.Wrapf(err, "cannot move %q into place", dst)
	}
	return nil
}
