package ingest

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/harborline/stevedore/pkg/log"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// ScannedFile is one file reported by a scanner.
type ScannedFile struct {
	Name string
	Path string
	Size int64
}

// Recorder turns scanner batches into ingest records for one scan.
// Recording is idempotent: files already recorded for the scan are
// skipped, so an interrupted scan can simply be re-run.
type Recorder struct {
	store  persistence.Store
	scan   *types.Scan
	logger zerolog.Logger
}

// NewRecorder returns a recorder for the given scan.
func NewRecorder(store persistence.Store, scan *types.Scan) *Recorder {
	return &Recorder{
		store:  store,
		scan:   scan,
		logger: log.WithComponent("scan").With().Str("scan_id", scan.ID).Logger(),
	}
}

// RecordBatch creates ingest records for the files in the batch that
// are not already recorded for this scan and returns the new records.
// Files matching an ingest rule start TRANSFERRED with the rule's data
// type tags applied; files matching no rule are DEFERRED.
func (r *Recorder) RecordBatch(files []ScannedFile) ([]*types.Ingest, error) {
	if len(files) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	existing, err := r.store.GetIngestsByScan(r.scan.ID, names)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, in := range existing {
		seen[in.FileName] = struct{}{}
	}

	now := time.Now().UTC()
	var created []*types.Ingest
	for _, f := range files {
		if _, ok := seen[f.Name]; ok {
			continue
		}
		seen[f.Name] = struct{}{}

		in := &types.Ingest{
			FileName:    f.Name,
			ScanID:      r.scan.ID,
			FilePath:    f.Path,
			FileSize:    f.Size,
			WorkspaceID: r.scan.Configuration.WorkspaceID,

			// Scanned files are already in the workspace; there is no
			// transfer phase.
			Status:        types.IngestTransferred,
			TransferEnded: &now,
		}

		if rule := MatchFileRule(r.scan.Configuration.FilesToIngest, f.Name); rule != nil {
			for _, tag := range rule.DataTypes {
				if err := AddDataTypeTag(in, tag); err != nil {
					return nil, err
				}
			}
			in.NewWorkspaceID = rule.NewWorkspaceID
			in.NewFilePath = rule.NewFilePath
		} else {
			in.Status = types.IngestDeferred
		}

		if err := r.store.CreateIngest(in); err != nil {
			return nil, err
		}
		created = append(created, in)
	}

	r.logger.Debug().
		Int("reported", len(files)).
		Int("created", len(created)).
		Msg("Recorded scanned files")
	return created, nil
}
