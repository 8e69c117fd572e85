package access

import (
	"context"
	"fmt"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// Evaluator applies a policy to rows using the grants stored in the ACL.
// Rows without a grant get the default access level.
type Evaluator struct {
	acl          repositories.ACLRepository
	policy       *Policy
	defaultLevel int
}

// NewEvaluator creates an evaluator
func NewEvaluator(acl repositories.ACLRepository, policy *Policy, defaultLevel int) *Evaluator {
	return &Evaluator{acl: acl, policy: policy, defaultLevel: defaultLevel}
}

// Row is a row to evaluate: its primary key and the fields exposed to the policy as item
type Row struct {
	ID     int64
	Fields map[string]interface{}
}

// Allowed returns the ids of the rows the scope's user may access for action
func (e *Evaluator) Allowed(ctx context.Context, scope entities.Scope, tableNum int, rows []Row, action string) (map[int64]bool, error) {
	allowed := make(map[int64]bool, len(rows))
	if len(rows) == 0 {
		return allowed, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	grants, err := e.acl.AccessFor(ctx, tableNum, ids, scope.UserID, scope.GroupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load access grants: %w", err)
	}

	groups := make([]interface{}, len(scope.GroupIDs))
	for i, g := range scope.GroupIDs {
		groups[i] = g
	}
	user := map[string]interface{}{"id": scope.UserID, "groups": groups}

	for _, r := range rows {
		level, ok := grants[r.ID]
		if !ok {
			level = e.defaultLevel
		}
		ok, err := e.policy.Allow(user, r.Fields, level, action)
		if err != nil {
			return nil, err
		}
		if ok {
			allowed[r.ID] = true
		}
	}
	return allowed, nil
}

// CanEdit reports whether the scope's user may change the relationships of one row
func (e *Evaluator) CanEdit(ctx context.Context, scope entities.Scope, tableNum int, id int64) (bool, error) {
	allowed, err := e.Allowed(ctx, scope, tableNum, []Row{{ID: id}}, ActionEdit)
	if err != nil {
		return false, err
	}
	return allowed[id], nil
}
