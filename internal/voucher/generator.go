// Package voucher renders reimbursement vouchers once a post-travel workflow
// completes. Generation is best-effort: a failed export is logged by the
// caller and never blocks workflow completion.
package voucher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tripdesk/travel-approval/internal/models"
)

// Config holds voucher generation configuration
type Config struct {
	OutputDir   string
	CompanyName string
}

// Generator writes reimbursement voucher workbooks.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates a new voucher generator
func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		logger: logger,
	}
}

// Generate writes a voucher workbook for a completed reimbursement and
// returns the output path. The approval chain sheet is filled from the audit
// history, oldest entry first.
func (g *Generator) Generate(ctx context.Context, instance *models.WorkflowInstance, history []*models.AuditEntry) (string, error) {
	if err := os.MkdirAll(g.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	voucherNumber := fmt.Sprintf("TR-%s-%s", instance.SubjectID, time.Now().Format("20060102150405"))
	outputPath := filepath.Join(g.cfg.OutputDir, voucherNumber+".xlsx")

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	cells := [][2]interface{}{
		{"A1", "Travel Reimbursement Voucher"},
		{"A3", "Company"}, {"B3", g.cfg.CompanyName},
		{"A4", "Voucher No."}, {"B4", voucherNumber},
		{"A5", "Travel Request"}, {"B5", instance.SubjectID},
		{"A6", "Estimated Cost"}, {"B6", instance.CostFacts.EstimatedCost},
		{"A7", "Actual Cost"}, {"B7", instance.CostFacts.ActualCost},
		{"A8", "Over Budget"}, {"B8", instance.CostFacts.IsOverBudget},
	}
	if instance.CostFacts.OverBudgetReason != "" {
		cells = append(cells, [2]interface{}{"A9", "Over Budget Reason"},
			[2]interface{}{"B9", instance.CostFacts.OverBudgetReason})
	}
	if instance.CompletedAt != nil {
		cells = append(cells, [2]interface{}{"A10", "Completed"},
			[2]interface{}{"B10", instance.CompletedAt.Format("2006-01-02 15:04")})
	}

	for _, cell := range cells {
		if err := f.SetCellValue(sheet, cell[0].(string), cell[1]); err != nil {
			return "", fmt.Errorf("failed to set cell %v: %w", cell[0], err)
		}
	}

	if err := g.fillApprovalChain(f, sheet, history); err != nil {
		return "", err
	}

	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save voucher: %w", err)
	}

	g.logger.Info("Voucher written",
		zap.String("voucher_number", voucherNumber),
		zap.String("path", outputPath))
	return outputPath, nil
}

// fillApprovalChain writes one row per audit entry starting at row 13.
// History arrives newest-first; rows are written oldest-first.
func (g *Generator) fillApprovalChain(f *excelize.File, sheet string, history []*models.AuditEntry) error {
	headers := []string{"Step", "Action", "Role", "Actor", "Time", "Comments"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 12)
		if err != nil {
			return fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header: %w", err)
		}
	}

	row := 13
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		values := []interface{}{
			entry.Step,
			entry.Action,
			entry.ActorRole,
			entry.ActorID,
			entry.Timestamp.Format("2006-01-02 15:04"),
			entry.Comments,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to build chain cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to set chain row: %w", err)
			}
		}
		row++
	}

	return nil
}
