package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsPoster/internal/domain"
	"NewsPoster/internal/metrics"
	"NewsPoster/internal/ports"
)

// IngestDeps wires the ingestion stage.
type IngestDeps struct {
	Source  ports.NewsSource
	News    ports.NewsWriter
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Fetched  int
	Inserted int
}

// Ingestor moves fresh headlines from the configured sources into the news store.
type Ingestor struct {
	source  ports.NewsSource
	news    ports.NewsWriter
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewIngestor constructs the ingestion stage.
func NewIngestor(deps IngestDeps) *Ingestor {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Discard{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{
		source:  deps.Source,
		news:    deps.News,
		metrics: rec,
		logger:  logger,
	}
}

// Ingest fetches and stores news. A partial source failure still stores
// whatever was fetched and is returned wrapped in domain.ErrIngestionFailure.
func (i *Ingestor) Ingest(ctx context.Context) (IngestReport, error) {
	if i.source == nil || i.news == nil {
		return IngestReport{}, nil
	}

	items, fetchErr := i.source.FetchNewsItems(ctx)
	if fetchErr != nil {
		if !errors.Is(fetchErr, domain.ErrIngestionFailure) {
			fetchErr = fmt.Errorf("%w: %w", domain.ErrIngestionFailure, fetchErr)
		}
		i.metrics.RecordIngestionFailure("sources")
		i.logger.Warn("news fetch incomplete", "fetched", len(items), "error", fetchErr)
	}

	report := IngestReport{Fetched: len(items)}
	if len(items) == 0 {
		return report, fetchErr
	}

	inserted, err := i.news.AppendNews(ctx, items)
	if err != nil {
		return report, errors.Join(fetchErr, fmt.Errorf("store news: %w", err))
	}
	report.Inserted = inserted
	i.metrics.RecordIngested(inserted)
	i.logger.Info("news ingested", "fetched", report.Fetched, "new", inserted)

	return report, fetchErr
}
