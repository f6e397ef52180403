package db

import (
	"fmt"
	"strings"

	"basement-monitor/internal/models"
)

// where renders a WHERE clause for f with positional arguments. Collections
// without an alert_type column pass withType=false.
func where(f models.Filter, withType bool) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.DeviceID != "" {
		args = append(args, f.DeviceID)
		conds = append(conds, fmt.Sprintf("dev_id = $%d", len(args)))
	}
	if withType && f.ReadingType != "" {
		args = append(args, string(f.ReadingType))
		conds = append(conds, fmt.Sprintf("alert_type = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
