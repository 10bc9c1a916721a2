package ingest

import (
	"sort"
	"time"

	"github.com/harborline/stevedore/pkg/types"
)

// HourCount is one hourly bucket in a strike's ingest status series.
type HourCount struct {
	Hour  time.Time
	Files int64
	Size  int64
}

// StrikeStatus summarizes the ingest work done by one strike process
// over a time window.
type StrikeStatus struct {
	StrikeID   string
	Files      int64
	Size       int64
	MostRecent *time.Time
	Values     []HourCount
}

// StatusRollup reports ingest activity grouped by strike process, then
// by UTC hour, over the window ending on the day containing ended and
// reaching back days whole days. Every strike gets an entry with
// exactly 24*(days+1) buckets; hours with no activity stay zero so
// callers can chart the series without gap handling. Entries are
// ordered by strike id.
//
// Only ingests that completed ingesting contribute, bucketed by the
// hour their ingest job finished. Ingests referencing an unknown
// strike are skipped.
func StatusRollup(strikes []*types.Strike, ingests []*types.Ingest, ended time.Time, days int) []*StrikeStatus {
	endDay := ended.UTC().Truncate(24 * time.Hour)
	startDay := endDay.AddDate(0, 0, -days)
	numHours := 24 * (days + 1)

	byStrike := make(map[string]*StrikeStatus, len(strikes))
	for _, s := range strikes {
		status := &StrikeStatus{
			StrikeID: s.ID,
			Values:   make([]HourCount, numHours),
		}
		for i := range status.Values {
			status.Values[i].Hour = startDay.Add(time.Duration(i) * time.Hour)
		}
		byStrike[s.ID] = status
	}

	for _, in := range ingests {
		if in.Status != types.IngestIngested || in.IngestEnded == nil {
			continue
		}
		status, ok := byStrike[in.StrikeID]
		if !ok {
			continue
		}

		when := in.IngestEnded.UTC()
		idx := int(when.Sub(startDay) / time.Hour)
		if when.Before(startDay) || idx >= numHours {
			continue
		}

		status.Values[idx].Files++
		status.Values[idx].Size += in.FileSize
		status.Files++
		status.Size += in.FileSize
		if status.MostRecent == nil || when.After(*status.MostRecent) {
			status.MostRecent = &when
		}
	}

	rollup := make([]*StrikeStatus, 0, len(byStrike))
	for _, status := range byStrike {
		rollup = append(rollup, status)
	}
	sort.Slice(rollup, func(i, j int) bool {
		return rollup[i].StrikeID < rollup[j].StrikeID
	})
	return rollup
}
