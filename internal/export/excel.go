// Package export writes stored listings to an Excel workbook.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"listing-crawler/internal/logging"
	"listing-crawler/pkg/models"
)

const SheetName = "Listings"

// ListingSource yields every stored listing. Implemented by db.DBService.
type ListingSource interface {
	GetAllListings(ctx context.Context) ([]models.Listing, error)
}

type column struct {
	header string
	width  float64
	value  func(i int, l models.Listing) any
}

var columns = []column{
	{"#", 8, func(i int, _ models.Listing) any { return i + 1 }},
	{"ID", 8, func(_ int, l models.Listing) any { return l.ID }},
	{"Category", 15, func(_ int, l models.Listing) any { return l.Category }},
	{"Title", 50, func(_ int, l models.Listing) any { return l.Title }},
	{"Torrent", 60, func(_ int, l models.Listing) any { return l.TorrentHref }},
	{"Magnet", 80, func(_ int, l models.Listing) any { return l.MagnetHref }},
	{"Size", 15, func(_ int, l models.Listing) any { return l.Size }},
	{"Date", 15, func(_ int, l models.Listing) any { return l.Date }},
	{"Created At", 20, func(_ int, l models.Listing) any { return l.CreatedAt.Format(time.DateTime) }},
}

// Filename returns the timestamped workbook name for now
func Filename(now time.Time) string {
	return "listings_" + now.Format("2006-01-02_15-04-05") + ".xlsx"
}

// Export writes all listings from src to a new workbook in dir and returns
// its path and the number of rows written. No file is created when there is
// nothing to export; the returned path is then empty.
func Export(ctx context.Context, src ListingSource, dir string, now time.Time) (string, int, error) {
	logger := logging.NewLogger("export")

	listings, err := src.GetAllListings(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("load listings: %w", err)
	}
	if len(listings) == 0 {
		logger.Info().Msg("No listings to export")
		return "", 0, nil
	}

	path := filepath.Join(dir, Filename(now))
	if err := WriteWorkbook(path, listings); err != nil {
		return "", 0, err
	}

	logger.Info().Str("file", path).Int("rows", len(listings)).Msg("Export written")
	return path, len(listings), nil
}

// WriteWorkbook writes listings to path with a styled, filtered and frozen
// header row
func WriteWorkbook(path string, listings []models.Listing) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E0E0E0"}},
	})
	if err != nil {
		return err
	}

	for c, col := range columns {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, name+"1", col.header); err != nil {
			return err
		}
	}

	for i, l := range listings {
		for c, col := range columns {
			cell, err := excelize.CoordinatesToCellName(c+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, col.value(i, l)); err != nil {
				return err
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	filterRange := fmt.Sprintf("A1:%s%d", lastCol, len(listings)+1)
	if err := f.AutoFilter(SheetName, filterRange, nil); err != nil {
		return err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
