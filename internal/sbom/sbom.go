// Package sbom writes an SPDX 2.3 document describing fetched Cygwin
// archives.
package sbom

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-edge-platform/cygfetch/internal/config/version"
	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
)

const (
	SPDXVersion       = "SPDX-2.3"
	SPDXDataLicense   = "CC0-1.0"
	SPDXDocumentID    = "SPDXRef-DOCUMENT"
	SPDXNamespaceBase = "https://spdx.openedge.dev/docs"
	NoAssertion       = "NOASSERTION"
	CygwinSupplier    = "Organization: Cygwin"
)

var DefaultSPDXFile = "spdx_manifest.json"

type SPDXDocument struct {
	SPDXVersion       string        `json:"spdxVersion"`
	DataLicense       string        `json:"dataLicense"`
	SPDXID            string        `json:"SPDXID"`
	DocumentName      string        `json:"name"`
	DocumentNamespace string        `json:"documentNamespace"`
	CreationInfo      CreationInfo  `json:"creationInfo"`
	Packages          []SPDXPackage `json:"packages"`
}

type CreationInfo struct {
	Created  string   `json:"created"`
	Creators []string `json:"creators"`
}

type SPDXPackage struct {
	SPDXID           string         `json:"SPDXID"`
	Name             string         `json:"name"`
	VersionInfo      string         `json:"versionInfo,omitempty"`
	PackageFileName  string         `json:"packageFileName,omitempty"`
	DownloadLocation string         `json:"downloadLocation"`
	FilesAnalyzed    bool           `json:"filesAnalyzed"`
	LicenseDeclared  string         `json:"licenseDeclared"`
	LicenseConcluded string         `json:"licenseConcluded"`
	Supplier         string         `json:"supplier,omitempty"`
	Checksum         []SPDXChecksum `json:"checksums,omitempty"`
	Description      string         `json:"summary,omitempty"`
	Comment          string         `json:"comment,omitempty"`
}

type SPDXChecksum struct {
	Algorithm     string `json:"algorithm"`
	ChecksumValue string `json:"checksumValue"`
}

// Entry is one archive to describe. Kind is "install" or "source".
type Entry struct {
	Package *ospackage.Package
	Record  *ospackage.FileRecord
	Kind    string
}

var spdxAlgorithms = map[ospackage.HashAlgorithm]string{
	ospackage.HashMD5:    "MD5",
	ospackage.HashSHA1:   "SHA1",
	ospackage.HashSHA256: "SHA256",
	ospackage.HashSHA512: "SHA512",
}

var idUnsafe = regexp.MustCompile(`[^A-Za-z0-9.-]+`)

// Build describes entries as SPDX packages. Archives that ended in Not Found
// or Error are left out.
func Build(entries []Entry, mirrorURL string, now time.Time) SPDXDocument {
	log := logger.Logger()
	now = now.UTC()

	doc := SPDXDocument{
		SPDXVersion:       SPDXVersion,
		DataLicense:       SPDXDataLicense,
		SPDXID:            SPDXDocumentID,
		DocumentName:      fmt.Sprintf("%s-%s", version.Toolname, now.Format("20060102T150405Z")),
		DocumentNamespace: fmt.Sprintf("%s/%s-%s", SPDXNamespaceBase, version.Toolname, uuid.New().String()),
		CreationInfo: CreationInfo{
			Created: now.Format("2006-01-02T15:04:05Z"),
			Creators: []string{
				fmt.Sprintf("Tool: %s-%s", version.Toolname, version.Version),
				fmt.Sprintf("Organization: %s", version.Organization),
			},
		},
		Packages: make([]SPDXPackage, 0, len(entries)),
	}

	base := strings.TrimRight(mirrorURL, "/") + "/"
	seen := map[string]int{}
	for _, e := range entries {
		if e.Record == nil || e.Record.State == ospackage.StateNotFound || e.Record.State == ospackage.StateError {
			continue
		}
		id := "SPDXRef-Package-" + strings.Trim(idUnsafe.ReplaceAllString(e.Package.Name, "-"), "-")
		if e.Kind != "" && e.Kind != "install" {
			id += "-" + e.Kind
		}
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n+1)
		} else {
			seen[id] = 1
		}

		pkg := SPDXPackage{
			SPDXID:           id,
			Name:             e.Package.Name,
			VersionInfo:      e.Package.Version,
			PackageFileName:  filepath.Base(filepath.FromSlash(e.Record.Path)),
			DownloadLocation: base + e.Record.Path,
			LicenseDeclared:  NoAssertion,
			LicenseConcluded: NoAssertion,
			Supplier:         CygwinSupplier,
			Description:      e.Package.Description,
		}
		if e.Kind == "source" {
			pkg.Comment = "source archive"
		}
		if alg, ok := spdxAlgorithms[e.Record.HashAlgorithm()]; ok {
			pkg.Checksum = []SPDXChecksum{{Algorithm: alg, ChecksumValue: strings.ToLower(e.Record.Hash)}}
		} else if e.Record.Hash != "" {
			log.Debugf("%s: digest of unknown type left out of the SBOM", e.Record.Path)
		}
		doc.Packages = append(doc.Packages, pkg)
	}
	return doc
}

// WriteSPDXToFile builds the document and writes it to outFile.
func WriteSPDXToFile(entries []Entry, mirrorURL, outFile string) error {
	log := logger.Logger()

	doc := Build(entries, mirrorURL, time.Now())
	log.Infof("generating SPDX manifest for %d archives", len(doc.Packages))

	if dir := filepath.Dir(outFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating SPDX output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SPDX JSON: %w", err)
	}
	if err := security.SafeWriteFile(outFile, data, 0o644, security.RejectSymlinks); err != nil {
		return fmt.Errorf("writing SPDX file: %w", err)
	}
	log.Infof("SPDX manifest written to %s", outFile)
	return nil
}
