package cygutils

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/setupini"
	"gopkg.in/yaml.v3"
)

// ReportFields selects the optional parts of a report.
type ReportFields struct {
	LongDesc        bool
	Hash            bool
	Source          bool
	Obsoletes       bool
	Conflicts       bool
	ReplaceVersions bool
}

type FileReport struct {
	Path      string     `json:"path" yaml:"path"`
	Size      int64      `json:"size" yaml:"size"`
	Hash      string     `json:"hash,omitempty" yaml:"hash,omitempty"`
	State     string     `json:"state,omitempty" yaml:"state,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

type PackageReport struct {
	Name            string      `json:"name" yaml:"name"`
	Description     string      `json:"sdesc" yaml:"sdesc"`
	LongDesc        string      `json:"ldesc,omitempty" yaml:"ldesc,omitempty"`
	Categories      []string    `json:"categories,omitempty" yaml:"categories,omitempty"`
	Version         string      `json:"version" yaml:"version"`
	Install         *FileReport `json:"install,omitempty" yaml:"install,omitempty"`
	Source          *FileReport `json:"source,omitempty" yaml:"source,omitempty"`
	Depends         []string    `json:"depends,omitempty" yaml:"depends,omitempty"`
	BuildDepends    []string    `json:"build_depends,omitempty" yaml:"build_depends,omitempty"`
	Obsoletes       []string    `json:"obsoletes,omitempty" yaml:"obsoletes,omitempty"`
	Conflicts       []string    `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	ReplaceVersions []string    `json:"replace_versions,omitempty" yaml:"replace_versions,omitempty"`
}

// Report is what list and fetch print.
type Report struct {
	Release  string          `json:"release,omitempty" yaml:"release,omitempty"`
	Arch     string          `json:"arch,omitempty" yaml:"arch,omitempty"`
	Packages []PackageReport `json:"packages" yaml:"packages"`
}

// BuildReport projects the resolved targets, sorted by name.
func BuildReport(targets *setupini.TargetSet, idx *setupini.Index, fields ReportFields) Report {
	rep := Report{Release: idx.Meta.Release, Arch: idx.Meta.Arch, Packages: []PackageReport{}}
	for _, p := range Resolved(targets, idx) {
		pr := PackageReport{
			Name:        p.Name,
			Description: p.Description,
			Categories:  p.Categories(),
			Version:     p.Version,
			Install:     fileReport(p.Install, fields.Hash),
			Depends:     p.Dependencies(),
		}
		if fields.Source {
			pr.Source = fileReport(p.Source, fields.Hash)
			pr.BuildDepends = p.BuildDependencies()
		}
		if fields.LongDesc && p.LongDesc != nil {
			pr.LongDesc = *p.LongDesc
		}
		if fields.Obsoletes {
			pr.Obsoletes = p.Obsoletes()
		}
		if fields.Conflicts {
			pr.Conflicts = p.Conflicts()
		}
		if fields.ReplaceVersions {
			pr.ReplaceVersions = p.ReplaceVersions()
		}
		rep.Packages = append(rep.Packages, pr)
	}
	return rep
}

func fileReport(rec *ospackage.FileRecord, withHash bool) *FileReport {
	if rec == nil {
		return nil
	}
	fr := &FileReport{Path: rec.Path, Size: rec.Size, State: rec.State.String(), Timestamp: rec.RemoteTimestamp}
	if withHash {
		fr.Hash = rec.Hash
	}
	return fr
}

// WriteReport renders rep as text, json or yaml.
func WriteReport(w io.Writer, rep Report, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		return writeText(w, rep)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeText(w io.Writer, rep Report) error {
	var b strings.Builder
	for _, p := range rep.Packages {
		fmt.Fprintf(&b, "%s %s", p.Name, p.Version)
		if p.Install != nil && p.Install.State != "" {
			fmt.Fprintf(&b, " [%s]", p.Install.State)
		}
		b.WriteByte('\n')
		if p.Description != "" {
			fmt.Fprintf(&b, "  sdesc: %s\n", p.Description)
		}
		if len(p.Categories) > 0 {
			fmt.Fprintf(&b, "  category: %s\n", strings.Join(p.Categories, " "))
		}
		if p.LongDesc != "" {
			fmt.Fprintf(&b, "  ldesc: %s\n", strings.ReplaceAll(p.LongDesc, "\n", "\n    "))
		}
		writeFileLine(&b, "install", p.Install)
		writeFileLine(&b, "source", p.Source)
		writeList(&b, "depends", p.Depends)
		writeList(&b, "build-depends", p.BuildDepends)
		writeList(&b, "obsoletes", p.Obsoletes)
		writeList(&b, "conflicts", p.Conflicts)
		writeList(&b, "replace-versions", p.ReplaceVersions)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeFileLine(b *strings.Builder, label string, f *FileReport) {
	if f == nil {
		return
	}
	fmt.Fprintf(b, "  %s: %s %d", label, f.Path, f.Size)
	if f.Hash != "" {
		fmt.Fprintf(b, " %s", f.Hash)
	}
	if f.State != "" && label != "install" {
		fmt.Fprintf(b, " [%s]", f.State)
	}
	b.WriteByte('\n')
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, "  %s: %s\n", label, strings.Join(items, ", "))
	}
}
