package inventory

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/activity"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
)

// ExportHeader is the first row of every usage export.
var ExportHeader = []string{"Block Name", "Page Title", "Post Type", "Edit Link", "View Link"}

// ExportResult is a rendered CSV document and its suggested filename.
type ExportResult struct {
	CSV      string `json:"csv"`
	Filename string `json:"filename"`
	Rows     int    `json:"-"`
}

// Export renders one CSV row per usage pair in idx. An index without pairs
// is an ErrEmptyResult.
func Export(idx *UsageIndex, now time.Time) (*ExportResult, error) {
	if idx == nil || idx.Pairs() == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyResult, 404, "No blocks found to export")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ExportHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	rows := 0
	for _, b := range idx.Buckets {
		for _, ref := range b.Usages {
			if err := w.Write([]string{b.BlockType, ref.Title, ref.ContentType, ref.EditURL, ref.ViewURL}); err != nil {
				return nil, fmt.Errorf("writing csv row: %w", err)
			}
			rows++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}

	return &ExportResult{
		CSV:      buf.String(),
		Filename: ExportFilename(now),
		Rows:     rows,
	}, nil
}

// ExportFilename embeds now in the suggested download name.
func ExportFilename(now time.Time) string {
	return "blocks-usage-" + now.Format("2006-01-02-150405") + ".csv"
}

// ExportUsage builds the full usage index and renders it as CSV.
func (s *Service) ExportUsage(ctx context.Context) (*ExportResult, error) {
	start := s.now()
	idx, err := s.BuildUsageIndex(ctx, nil)
	if err != nil {
		return nil, err
	}
	res, err := Export(idx, start)
	event := activity.ScanEvent{
		Type:       activity.ScanExport,
		Items:      idx.Items,
		BlockTypes: idx.Len(),
		Failed:     err != nil && !errors.Is(err, apperrors.ErrEmptyResult),
		Timestamp:  start.UTC(),
	}
	if res != nil {
		event.UsagePairs = res.Rows
	}
	s.Record(ctx, event, s.now().Sub(start))
	return res, err
}
