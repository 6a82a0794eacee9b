package security

import (
	"fmt"
	"os"
	"path/filepath"
)

// SymlinkPolicy says what to do when a path turns out to be a symlink.
type SymlinkPolicy int

const (
	RejectSymlinks SymlinkPolicy = iota
	ResolveSymlinks
	AllowSymlinks
)

func (p SymlinkPolicy) valid() bool {
	return p >= RejectSymlinks && p <= AllowSymlinks
}

// SafeFileInfo describes a path after the policy was applied.
type SafeFileInfo struct {
	OriginalPath string
	ResolvedPath string
	IsSymlink    bool
	FileInfo     os.FileInfo
}

// CheckSymlink applies policy to path, which must exist.
func CheckSymlink(path string, policy SymlinkPolicy) (*SafeFileInfo, error) {
	if !policy.valid() {
		return nil, fmt.Errorf("invalid symlink policy: %d", policy)
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	info := &SafeFileInfo{
		OriginalPath: path,
		ResolvedPath: path,
		IsSymlink:    fi.Mode()&os.ModeSymlink != 0,
		FileInfo:     fi,
	}
	if !info.IsSymlink || policy == AllowSymlinks {
		return info, nil
	}
	if policy == RejectSymlinks {
		return nil, fmt.Errorf("symlinks are not allowed: %s", path)
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, fmt.Errorf("resolving symlink %s: %w", path, err)
	}
	if info.FileInfo, err = os.Stat(target); err != nil {
		return nil, fmt.Errorf("stat symlink target %s: %w", target, err)
	}
	info.ResolvedPath = target
	return info, nil
}

func SafeReadFile(path string, policy SymlinkPolicy) ([]byte, error) {
	info, err := CheckSymlink(path, policy)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(info.ResolvedPath)
}

// SafeWriteFile checks an existing file and its parent directory before
// writing.
func SafeWriteFile(path string, data []byte, perm os.FileMode, policy SymlinkPolicy) error {
	resolved, err := resolveForWrite(path, policy)
	if err != nil {
		return err
	}
	return os.WriteFile(resolved, data, perm)
}

// SafeOpenFile opens path after the policy checks. With O_CREATE a missing
// file is allowed; only its parent directory is checked then.
func SafeOpenFile(path string, flag int, perm os.FileMode, policy SymlinkPolicy) (*os.File, error) {
	if flag&os.O_CREATE != 0 {
		resolved, err := resolveForWrite(path, policy)
		if err != nil {
			return nil, err
		}
		return os.OpenFile(resolved, flag, perm)
	}
	info, err := CheckSymlink(path, policy)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(info.ResolvedPath, flag, perm)
}

func resolveForWrite(path string, policy SymlinkPolicy) (string, error) {
	if !policy.valid() {
		return "", fmt.Errorf("invalid symlink policy: %d", policy)
	}
	if _, err := os.Lstat(path); err == nil {
		info, err := CheckSymlink(path, policy)
		if err != nil {
			return "", fmt.Errorf("existing file symlink check failed: %w", err)
		}
		path = info.ResolvedPath
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return path, nil
	}
	if _, err := os.Lstat(dir); err != nil {
		// os.WriteFile reports the missing directory.
		return path, nil
	}
	info, err := CheckSymlink(dir, policy)
	if err != nil {
		return "", fmt.Errorf("parent directory symlink check failed: %w", err)
	}
	return filepath.Join(info.ResolvedPath, filepath.Base(path)), nil
}
