// Package security holds input checks for command-line values, config
// strings and manifest paths, and symlink-aware file access.
package security

import (
	"fmt"
	"net/url"
	"path"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Limits struct {
	MaxString int // flag values, package names, patterns
	MaxPath   int // file paths and URLs
	AllowNL   bool
	AllowTab  bool
}

func DefaultLimits() Limits {
	return Limits{
		MaxString: 4096,
		MaxPath:   4096,
		AllowNL:   false,
		AllowTab:  true,
	}
}

func ValidateString(name, s string, lim Limits) error {
	return check(name, s, lim.MaxString, lim)
}

func ValidatePath(name, s string, lim Limits) error {
	return check(name, s, lim.MaxPath, lim)
}

func check(name, s string, max int, lim Limits) error {
	if s == "" {
		return nil
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: invalid UTF-8", name)
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("%s: contains NUL byte", name)
	}
	if n := utf8.RuneCountInString(s); max > 0 && n > max {
		return fmt.Errorf("%s: too long (%d > %d)", name, n, max)
	}
	for _, r := range s {
		switch {
		case r == '\n' && lim.AllowNL, r == '\t' && lim.AllowTab:
		case !unicode.IsPrint(r):
			return fmt.Errorf("%s: contains control characters", name)
		}
	}
	return nil
}

// ValidateRelPath accepts a slash-separated path that stays below the
// directory it is joined to. Manifest install and source paths go through
// this before they touch the cache.
func ValidateRelPath(name, p string) error {
	if p == "" {
		return fmt.Errorf("%s: empty", name)
	}
	if err := check(name, p, DefaultLimits().MaxPath, Limits{}); err != nil {
		return err
	}
	if strings.ContainsRune(p, '\\') || strings.HasPrefix(p, "/") || (len(p) > 1 && p[1] == ':') {
		return fmt.Errorf("%s: %q is not a relative path", name, p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%s: %q leaves the target directory", name, p)
	}
	return nil
}

// ValidateMirrorURL accepts absolute http and https URLs.
func ValidateMirrorURL(name, s string) error {
	if err := check(name, s, DefaultLimits().MaxPath, Limits{}); err != nil {
		return err
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an http or https URL", name, s)
	}
	return nil
}

// ValidateStructStrings walks obj and checks every string it reaches.
// Fields whose name mentions a path, file or dir get the path limit.
func ValidateStructStrings(obj any, lim Limits) error {
	return walk(reflect.ValueOf(obj), "config", lim, map[uintptr]bool{})
}

func walk(v reflect.Value, where string, lim Limits, seen map[uintptr]bool) error {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || seen[v.Pointer()] {
			return nil
		}
		seen[v.Pointer()] = true
		return walk(v.Elem(), where, lim, seen)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := walk(v.Field(i), where+"."+t.Field(i).Name, lim, seen); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := walk(iter.Value(), fmt.Sprintf("%s[%v]", where, iter.Key()), lim, seen); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), fmt.Sprintf("%s[%d]", where, i), lim, seen); err != nil {
				return err
			}
		}
	case reflect.String:
		if pathy(where) {
			return ValidatePath(where, v.String(), lim)
		}
		return ValidateString(where, v.String(), lim)
	}
	return nil
}

func pathy(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"path", "file", "dir", "url", "key"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// AttachRecursive makes root and all its subcommands check their arguments
// and string flags before running.
func AttachRecursive(root *cobra.Command, lim Limits) {
	prev := root.PersistentPreRunE
	root.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if err := checkCommandInput(c, args, lim); err != nil {
			return err
		}
		if prev != nil {
			return prev(c, args)
		}
		return nil
	}
	for _, c := range root.Commands() {
		AttachRecursive(c, lim)
	}
}

func checkCommandInput(cmd *cobra.Command, args []string, lim Limits) error {
	for i, a := range args {
		if err := ValidateString(fmt.Sprintf("arg[%d]", i), a, lim); err != nil {
			return err
		}
	}

	var firstErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		var values []string
		switch f.Value.Type() {
		case "string":
			values = []string{f.Value.String()}
		case "stringSlice", "stringArray":
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				values = sv.GetSlice()
			}
		default:
			return
		}
		validate := ValidateString
		if pathy(f.Name) {
			validate = ValidatePath
		}
		for i, v := range values {
			name := "flag --" + f.Name
			if len(values) > 1 {
				name = fmt.Sprintf("%s[%d]", name, i)
			}
			if firstErr = validate(name, v, lim); firstErr != nil {
				return
			}
		}
	})
	return firstErr
}
