package ingest

import (
	"fmt"
	"time"

	"github.com/harborline/stevedore/pkg/events"
	"github.com/harborline/stevedore/pkg/metrics"
	"github.com/harborline/stevedore/pkg/persistence"
	"github.com/harborline/stevedore/pkg/types"
)

// CompleteIngest marks the ingest as successfully finished, records the
// end time, and publishes the completion event.
func CompleteIngest(store persistence.Store, broker *events.Broker, in *types.Ingest) error {
	now := time.Now().UTC()
	in.Status = types.IngestIngested
	in.IngestEnded = &now
	if err := store.UpdateIngest(in); err != nil {
		return err
	}

	metrics.IngestedFiles.Inc()
	metrics.IngestedBytes.Add(float64(in.FileSize))

	broker.Publish(&events.Event{
		Type:    events.EventIngestCompleted,
		Message: fmt.Sprintf("Ingested %s", in.FileName),
		Metadata: map[string]string{
			"file_name": in.FileName,
			"strike_id": in.StrikeID,
			"scan_id":   in.ScanID,
		},
	})
	return nil
}

// ErrorIngest marks the ingest as failed and publishes the error event.
func ErrorIngest(store persistence.Store, broker *events.Broker, in *types.Ingest, reason string) error {
	now := time.Now().UTC()
	in.Status = types.IngestErrored
	in.IngestEnded = &now
	if err := store.UpdateIngest(in); err != nil {
		return err
	}

	broker.Publish(&events.Event{
		Type:    events.EventIngestErrored,
		Message: fmt.Sprintf("Ingest of %s failed: %s", in.FileName, reason),
		Metadata: map[string]string{
			"file_name": in.FileName,
			"strike_id": in.StrikeID,
			"scan_id":   in.ScanID,
		},
	})
	return nil
}
