package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tradedoc/internal/store"
)

// Report summarizes one committed batch.
type Report struct {
	BatchID string `json:"batch_id"`
	Created int    `json:"count"`
	Skipped []Skip `json:"skipped"`
}

// Importer normalizes a batch against the store and commits it all at once.
type Importer struct {
	store      store.TransactionStore
	normalizer *Normalizer
	log        zerolog.Logger
}

func NewImporter(s store.TransactionStore, opts Options, log zerolog.Logger) *Importer {
	return &Importer{
		store:      s,
		normalizer: NewNormalizer(opts),
		log:        log.With().Str("component", "ingest").Logger(),
	}
}

// Import returns a *BatchError when any row failed validation; in that case
// nothing is written.
func (im *Importer) Import(ctx context.Context, rows []Row) (Report, error) {
	report := Report{BatchID: uuid.NewString()}
	log := im.log.With().Str("batch_id", report.BatchID).Int("rows", len(rows)).Logger()

	existing, err := im.store.ExistingKeys(ctx, references(rows))
	if err != nil {
		return report, fmt.Errorf("failed to load existing references: %w", err)
	}

	res := im.normalizer.Normalize(rows, KeySet(existing))
	report.Skipped = res.Skipped

	if err := res.Err(); err != nil {
		log.Warn().Int("errors", len(res.Errors)).Msg("batch rejected")
		return report, err
	}

	written, err := im.store.BulkInsert(ctx, res.Drafts)
	if err != nil {
		return report, err
	}
	report.Created = written

	log.Info().
		Int("created", written).
		Int("skipped", len(res.Skipped)).
		Int("lost_race", len(res.Drafts)-written).
		Msg("batch imported")

	return report, nil
}

func references(rows []Row) []string {
	refs := make([]string, 0, len(rows))
	for _, r := range rows {
		if ref := r.str(ColTrref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}
