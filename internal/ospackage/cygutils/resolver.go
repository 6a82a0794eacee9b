// Package cygutils works on a parsed setup.ini index: dependency closure,
// local state, manifest retrieval and archive downloads.
package cygutils

import (
	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/setupini"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
)

// Resolve expands targets in place with the run-time and/or build-time
// dependency closure. Names that are neither packages nor provided aliases
// are dropped.
//
// targets is scanned as a queue: each pass walks the names appended by the
// previous one, until a pass appends nothing.
func Resolve(targets *setupini.TargetSet, idx *setupini.Index, runtime, build bool) {
	log := logger.Logger()
	if !runtime && !build {
		return
	}

	seeds := targets.Len()
	cursor := 0
	for pass := 1; ; pass++ {
		end := targets.Len()
		if cursor == end {
			break
		}
		for ; cursor < end; cursor++ {
			pkg, ok := idx.Get(targets.At(cursor))
			if !ok {
				continue
			}
			if runtime {
				addEdges(targets, idx, pkg.Dependencies())
			}
			if build {
				addEdges(targets, idx, pkg.BuildDependencies())
			}
		}
		log.Debugf("dependency pass %d: %d -> %d packages", pass, end, targets.Len())
	}

	if grown := targets.Len() - seeds; grown > 0 {
		log.Infof("dependency closure added %d packages to %d selected", grown, seeds)
	}
}

func addEdges(targets *setupini.TargetSet, idx *setupini.Index, deps []string) {
	for _, dep := range deps {
		if _, ok := idx.Get(dep); ok {
			targets.Add(dep)
			continue
		}
		for _, provider := range idx.Providers(dep) {
			targets.Add(provider)
		}
	}
}

// Resolved returns the indexed packages for targets, sorted by name.
func Resolved(targets *setupini.TargetSet, idx *setupini.Index) []*ospackage.Package {
	names := targets.Sorted()
	out := make([]*ospackage.Package, 0, len(names))
	for _, n := range names {
		if p, ok := idx.Get(n); ok {
			out = append(out, p)
		}
	}
	return out
}
