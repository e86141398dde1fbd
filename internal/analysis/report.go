package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/storage"
)

// ArchivePrefix is the blob prefix under which run reports are stored
const ArchivePrefix = storage.RunReportPrefix

// ReportPath returns runs/YYYY/MM/DD/<run-id>.json for the run's start date
func ReportPath(report *models.RunReport) string {
	return fmt.Sprintf("%s%s/%s.json", ArchivePrefix, report.StartedAt.UTC().Format("2006/01/02"), report.RunID)
}

// ListReports returns archived report paths, most recent day first
func ListReports(ctx context.Context, archive storage.StorageInterface) ([]string, error) {
	names, err := archive.List(ctx, ArchivePrefix)
	if err != nil {
		return nil, fmt.Errorf("list run reports: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// LoadReport reads one archived run report
func LoadReport(ctx context.Context, archive storage.StorageInterface, path string) (*models.RunReport, error) {
	data, err := archive.Retrieve(ctx, path)
	if err != nil {
		return nil, err
	}

	var report models.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse run report %s: %w", path, err)
	}
	return &report, nil
}
