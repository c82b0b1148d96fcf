package verify

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pretextml/pretext/internal/catalog"
)

// checkManifest compares the scanned corpus against the latest build
// record. The manifest is stat'd before opening because OpenManifest
// creates the database file when it is missing.
func (v *Verifier) checkManifest(ctx context.Context, rep *scanReport, manifestPath string) []CheckResult {
	if manifestPath == "" {
		return []CheckResult{{
			Name:     "manifest",
			Status:   StatusWarn,
			Message:  "no manifest path given",
			Required: false,
		}}
	}
	if _, err := os.Stat(manifestPath); err != nil {
		return []CheckResult{{
			Name:     "manifest",
			Status:   StatusWarn,
			Message:  "manifest not found: " + manifestPath,
			Details:  "run a build to record one",
			Required: false,
		}}
	}

	m, err := catalog.OpenManifest(manifestPath)
	if err != nil {
		return []CheckResult{{
			Name:     "manifest",
			Status:   StatusFail,
			Message:  fmt.Sprintf("cannot open manifest: %v", err),
			Required: true,
		}}
	}
	defer func() { _ = m.Close() }()

	rec, err := m.LatestBuild(ctx)
	if err != nil {
		return []CheckResult{{
			Name:     "manifest",
			Status:   StatusFail,
			Message:  fmt.Sprintf("cannot query manifest: %v", err),
			Required: true,
		}}
	}
	if rec == nil {
		return []CheckResult{{
			Name:     "manifest",
			Status:   StatusWarn,
			Message:  "manifest has no recorded builds",
			Required: false,
		}}
	}

	return []CheckResult{
		checkManifestCounts(rep, rec),
		checkManifestChecksum(rep, rec),
	}
}

func checkManifestCounts(rep *scanReport, rec *catalog.BuildRecord) CheckResult {
	var mismatches []string
	if rec.Documents != rep.documents {
		mismatches = append(mismatches,
			fmt.Sprintf("documents %d != %d", rep.documents, rec.Documents))
	}
	if rec.Sentences != rep.sentences {
		mismatches = append(mismatches,
			fmt.Sprintf("sentences %d != %d", rep.sentences, rec.Sentences))
	}
	if rec.Separators != rep.separators {
		mismatches = append(mismatches,
			fmt.Sprintf("separators %d != %d", rep.separators, rec.Separators))
	}
	if rec.Bytes != rep.bytes {
		mismatches = append(mismatches,
			fmt.Sprintf("bytes %d != %d", rep.bytes, rec.Bytes))
	}

	if len(mismatches) > 0 {
		return CheckResult{
			Name:     "manifest_counts",
			Status:   StatusFail,
			Message:  "corpus does not match the latest build: " + strings.Join(mismatches, ", "),
			Details:  "file counts first, manifest counts second; the corpus changed since the build was recorded",
			Required: true,
		}
	}
	return CheckResult{
		Name:     "manifest_counts",
		Status:   StatusPass,
		Message:  "counts match the latest build",
		Required: true,
	}
}

func checkManifestChecksum(rep *scanReport, rec *catalog.BuildRecord) CheckResult {
	if rec.Checksum == "" {
		return CheckResult{
			Name:     "manifest_checksum",
			Status:   StatusWarn,
			Message:  "latest build has no recorded checksum",
			Required: false,
		}
	}
	if rec.Checksum != rep.checksum {
		return CheckResult{
			Name:    "manifest_checksum",
			Status:  StatusFail,
			Message: "checksum does not match the latest build",
			Details: fmt.Sprintf("file sha256 %.12s..., manifest sha256 %.12s...",
				rep.checksum, rec.Checksum),
			Required: true,
		}
	}
	return CheckResult{
		Name:     "manifest_checksum",
		Status:   StatusPass,
		Message:  "sha256 matches the latest build",
		Required: true,
	}
}
