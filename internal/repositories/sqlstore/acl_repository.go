package sqlstore

import (
	"context"
	"fmt"

	"github.com/asakaida/relata/internal/repositories"
)

// ACLRepository implements repositories.ACLRepository
type ACLRepository struct {
	store *Store
}

// NewACLRepository creates a new ACL repository
func NewACLRepository(store *Store) repositories.ACLRepository {
	return &ACLRepository{store: store}
}

// AccessFor returns the highest access level granted on each row to the user,
// any of the groups, or everyone (grants with neither user nor group)
func (r *ACLRepository) AccessFor(ctx context.Context, tableNum int, rowIDs []int64, userID int64, groupIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(rowIDs))
	if len(rowIDs) == 0 {
		return out, nil
	}

	rowCond, args := r.store.in("row_id", rowIDs)
	args = append([]interface{}{tableNum}, args...)

	who := "(user_id IS NULL AND group_id IS NULL)"
	if userID != 0 {
		who += " OR user_id = ?"
		args = append(args, userID)
	}
	if len(groupIDs) > 0 {
		groupCond, groupArgs := r.store.in("group_id", groupIDs)
		who += " OR " + groupCond
		args = append(args, groupArgs...)
	}

	query := fmt.Sprintf(`SELECT row_id, MAX(access) AS access FROM acl
		WHERE table_num = ? AND %s AND (%s)
		GROUP BY row_id`, rowCond, who)

	rows, err := r.store.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query acl: %w", err)
	}
	for _, row := range rows {
		out[row.Int64("row_id")] = int(row.Int64("access"))
	}
	return out, nil
}

// Grant stores an access grant. Zero user and group ids grant everyone.
func (r *ACLRepository) Grant(ctx context.Context, tableNum int, rowID, userID, groupID int64, access int) error {
	_, err := r.store.insert(ctx, "acl", "acl_id",
		[]string{"table_num", "row_id", "user_id", "group_id", "access"},
		[]interface{}{tableNum, rowID, nullInt64(userID), nullInt64(groupID), access},
	)
	if err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	return nil
}
