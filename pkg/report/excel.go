package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

var xlsxHeader = []string{"Category", "Platform", "Gap Score", "Verdict", "Avg Demand", "Avg Supply", "Avg Quality", "Avg Price"}

// WriteXLSX exports the summary as a spreadsheet with one sheet per section.
func WriteXLSX(s *Summary, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, "Opportunities", s.TopOpportunities); err != nil {
		return err
	}
	if err := writeSheet(f, "Saturated", s.SaturatedCategories); err != nil {
		return err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, rows []Opportunity) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	for col, h := range xlsxHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", name, err)
		}
	}

	for i, opp := range rows {
		values := []any{opp.Category, opp.Platform, opp.GapScore, opp.Verdict,
			opp.AvgDemand, opp.AvgSupply, opp.AvgQuality, opp.AvgPrice}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(name, cell, v); err != nil {
				return fmt.Errorf("write row %d on %s: %w", i+2, name, err)
			}
		}
	}
	return nil
}
