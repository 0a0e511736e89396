package sheets

import (
	"context"

	"google.golang.org/api/sheets/v4"

	"github.com/decimal-labs/leakwatch/internal/model"
)

var severityColors = map[model.Severity]*sheets.Color{
	model.SeverityCritical: {Red: 0.96, Green: 0.60, Blue: 0.60, Alpha: 1.0},
	model.SeverityHigh:     {Red: 0.99, Green: 0.80, Blue: 0.60, Alpha: 1.0},
	model.SeverityMedium:   {Red: 1.00, Green: 0.95, Blue: 0.70, Alpha: 1.0},
	model.SeverityLow:      {Red: 0.85, Green: 0.93, Blue: 0.83, Alpha: 1.0},
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, tabs map[string]int64, leakRows int) error {
	leaksID := tabs[LeaksTab]
	requests := []*sheets.Request{
		headerFormat(leaksID, int64(len(leakHeader))),
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        leaksID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    leaksID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(len(leakHeader)),
				},
			},
		},
	}
	requests = append(requests, severityRules(leaksID, int64(leakRows))...)

	if summaryID, ok := tabs[SummaryTab]; ok {
		requests = append(requests,
			headerFormat(summaryID, 2),
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          summaryID,
						StartRowIndex:    1,
						StartColumnIndex: 0,
						EndColumnIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat.textFormat",
				},
			},
		)
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

func headerFormat(sheetID, columns int64) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    0,
				EndRowIndex:      1,
				StartColumnIndex: 0,
				EndColumnIndex:   columns,
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					TextFormat: &sheets.TextFormat{Bold: true},
					BackgroundColor: &sheets.Color{
						Red:   0.9,
						Green: 0.9,
						Blue:  0.9,
						Alpha: 1.0,
					},
				},
			},
			Fields: "userEnteredFormat.textFormat,userEnteredFormat.backgroundColor",
		},
	}
}

// severityRules colours the severity column by level.
// TODO: delete rules left by earlier exports; each run appends another set.
func severityRules(sheetID, rows int64) []*sheets.Request {
	requests := make([]*sheets.Request, 0, len(severityColors))
	for _, sev := range model.AllSeverities {
		requests = append(requests, &sheets.Request{
			AddConditionalFormatRule: &sheets.AddConditionalFormatRuleRequest{
				Index: 0,
				Rule: &sheets.ConditionalFormatRule{
					Ranges: []*sheets.GridRange{{
						SheetId:          sheetID,
						StartRowIndex:    1,
						EndRowIndex:      max(rows, 2),
						StartColumnIndex: 1,
						EndColumnIndex:   2,
					}},
					BooleanRule: &sheets.BooleanRule{
						Condition: &sheets.BooleanCondition{
							Type:   "TEXT_EQ",
							Values: []*sheets.ConditionValue{{UserEnteredValue: sev.String()}},
						},
						Format: &sheets.CellFormat{BackgroundColor: severityColors[sev]},
					},
				},
			},
		})
	}
	return requests
}
