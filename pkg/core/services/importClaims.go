package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/internal/config"
	"github.com/jakechorley/claim-router/pkg/core/ingest"
	"github.com/jakechorley/claim-router/pkg/core/model"
)

// ClaimSheetReader reads the raw values of a claims tab
type ClaimSheetReader interface {
	ReadClaims(spreadsheetID, tab string) ([][]interface{}, error)
}

// ImportClaims reads and validates the configured claims sheet. Row problems are
// returned as *ingest.ValidationError.
func ImportClaims(reader ClaimSheetReader, cfg *config.Config, logger *zap.Logger) ([]model.ClaimCandidate, error) {
	if cfg.Sheets.ClaimsSheetID == "" {
		return nil, fmt.Errorf("sheets.claimsSheetID is not configured")
	}

	logger.Debug("Reading claims sheet",
		zap.String("spreadsheet_id", cfg.Sheets.ClaimsSheetID),
		zap.String("tab", cfg.Sheets.ClaimsTab))

	values, err := reader.ReadClaims(cfg.Sheets.ClaimsSheetID, cfg.Sheets.ClaimsTab)
	if err != nil {
		return nil, err
	}

	table, err := ingest.FromValues(values)
	if err != nil {
		return nil, err
	}

	candidates, err := ingest.ParseRows(table)
	if err != nil {
		return nil, err
	}

	logger.Info("Imported claims from sheet", zap.Int("count", len(candidates)))
	return candidates, nil
}
