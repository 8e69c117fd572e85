package entities

import (
	"fmt"
	"time"
)

// AttributeValue represents a metadata value attached to a row of any table
// Example: items_x_tags:12.remarks = "verified by registrar"
type AttributeValue struct {
	ID          int64
	TableNum    int    // Table number of the owning row
	RowID       int64  // Primary key of the owning row
	ElementCode string // Metadata element (e.g., "remarks")
	Value       string
	CreatedAt   time.Time
}

// String returns a string representation of the attribute value
// Format: table_num:row_id.element = value
func (a *AttributeValue) String() string {
	return fmt.Sprintf("%d:%d.%s = %s", a.TableNum, a.RowID, a.ElementCode, a.Value)
}

// Validate checks if the attribute value is valid
func (a *AttributeValue) Validate() error {
	if a.TableNum <= 0 {
		return fmt.Errorf("table number is required")
	}
	if a.RowID <= 0 {
		return fmt.Errorf("row id is required")
	}
	if a.ElementCode == "" {
		return fmt.Errorf("element code is required")
	}
	return nil
}

// CopyTo returns a copy of the value attached to another row
func (a *AttributeValue) CopyTo(rowID int64) *AttributeValue {
	return &AttributeValue{
		TableNum:    a.TableNum,
		RowID:       rowID,
		ElementCode: a.ElementCode,
		Value:       a.Value,
	}
}
