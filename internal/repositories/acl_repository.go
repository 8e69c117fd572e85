package repositories

import "context"

// ACLRepository reads item-level access grants
type ACLRepository interface {
	// AccessFor returns the highest access level granted on each row to the user or any of the groups.
	// Rows without a grant are absent from the result.
	AccessFor(ctx context.Context, tableNum int, rowIDs []int64, userID int64, groupIDs []int64) (map[int64]int, error)

	Grant(ctx context.Context, tableNum int, rowID, userID, groupID int64, access int) error
}
