package sheetsclient

import (
	"fmt"
)

// ReadClaims returns the raw cell values of a claims tab, header row first
func (c *Client) ReadClaims(spreadsheetID, tab string) ([][]interface{}, error) {
	values, err := c.GetValues(spreadsheetID, tab)
	if err != nil {
		return nil, fmt.Errorf("failed to read claims from %s: %w", tab, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("claims tab %s is empty", tab)
	}
	return values, nil
}
