// Package export renders a bounty's entries and winners as a spreadsheet for
// manual prize payout.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/prizes"
)

// Sheet names
const (
	SubmissionsSheet = "Submissions"
	WinnersSheet     = "Winners"
)

// ContentType is the MIME type of the workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	submissionHeader = []interface{}{"Submission ID", "Wallet", "Twitter handle", "Tweet link", "Extra info", "Submitted at", "Updated at"}
	winnerHeader     = []interface{}{"Position", "Rank", "Wallet", "Twitter handle", "Tweet link", "Prize"}
)

// WriteXLSX writes a workbook with every submission and, once announced,
// the ranked winners with their prize amounts
func WriteXLSX(w io.Writer, view *models.BountyView, submissions []*models.Submission) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), SubmissionsSheet); err != nil {
		return fmt.Errorf("failed to name submissions sheet: %w", err)
	}

	rows := make([][]interface{}, 0, len(submissions)+1)
	rows = append(rows, submissionHeader)
	for _, s := range submissions {
		rows = append(rows, []interface{}{
			s.ID,
			s.WalletAddress,
			s.TwitterHandle,
			s.TweetLink,
			s.ExtraInfo,
			s.CreatedAt.UTC().Format(time.RFC3339),
			s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeRows(f, SubmissionsSheet, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(WinnersSheet); err != nil {
		return fmt.Errorf("failed to create winners sheet: %w", err)
	}

	rows = [][]interface{}{winnerHeader}
	for _, winner := range view.Winners {
		rank := interface{}("")
		if r, ok := parseRank(winner); ok {
			rank = r
		}
		amount := prizes.AmountFor(view.Prizes, winner.Position)
		rows = append(rows, []interface{}{
			winner.Position,
			rank,
			winner.Submission.WalletAddress,
			winner.Submission.TwitterHandle,
			winner.Submission.TweetLink,
			amount.InexactFloat64(),
		})
	}
	if err := writeRows(f, WinnersSheet, rows); err != nil {
		return err
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   view.Title,
		Subject: fmt.Sprintf("Bounty %s", view.ID),
		Creator: "bounty-board",
	}); err != nil {
		return fmt.Errorf("failed to set workbook properties: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for idx, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", idx+1, err)
		}
		cells := row
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, idx+1, err)
		}
	}
	return nil
}

func parseRank(w models.Winner) (int, bool) {
	if w.PositionRank > 0 {
		return w.PositionRank, true
	}
	return 0, false
}
