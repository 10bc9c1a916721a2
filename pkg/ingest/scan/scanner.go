package scan

import (
	"context"
	"fmt"

	"github.com/harborline/stevedore/pkg/ingest"
	"github.com/harborline/stevedore/pkg/types"
)

// ReportFunc receives one batch of scanned files. The batch slice is
// reused between calls; retain a copy if needed. Returning an error
// aborts the scan.
type ReportFunc func(files []ingest.ScannedFile) error

// Scanner enumerates a source location and reports the files it finds
// in batches.
type Scanner interface {
	// ValidateConfiguration checks the scanner section of a scan
	// configuration without touching the source.
	ValidateConfiguration(cfg types.ScanConfiguration) error

	// LoadConfiguration prepares the scanner from the configuration,
	// constructing any clients it needs.
	LoadConfiguration(ctx context.Context, cfg types.ScanConfiguration) error

	// Scan enumerates the source and delivers batches to report until
	// the source is exhausted, the context is cancelled, or Stop is
	// called.
	Scan(ctx context.Context, report ReportFunc) error

	// Stop asks a running Scan to end after the current batch.
	Stop()
}

// New returns the scanner implementation named by the configuration.
func New(cfg types.ScanConfiguration) (Scanner, error) {
	switch cfg.Scanner.Type {
	case "s3":
		return NewS3Scanner(), nil
	default:
		return nil, fmt.Errorf("unknown scanner type %q", cfg.Scanner.Type)
	}
}
