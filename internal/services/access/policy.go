// Package access decides item-level access to related rows.
package access

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Actions a policy is evaluated for
const (
	ActionRead = "read"
	ActionEdit = "edit"
)

// Policy is a compiled CEL expression over the variables
//
//	user   map: id, groups
//	item   map: the row's fields
//	acl    int: highest access level granted on the row
//	action string: "read" or "edit"
type Policy struct {
	expr    string
	program cel.Program
}

// NewPolicy compiles a policy expression. The expression must return a boolean.
func NewPolicy(expr string) (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("acl", cel.IntType),
		cel.Variable("action", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid access policy: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("access policy must return boolean, got: %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return &Policy{expr: expr, program: program}, nil
}

// String returns the policy expression
func (p *Policy) String() string {
	return p.expr
}

// Allow evaluates the policy for one row
func (p *Policy) Allow(user, item map[string]interface{}, acl int, action string) (bool, error) {
	if user == nil {
		user = map[string]interface{}{}
	}
	if item == nil {
		item = map[string]interface{}{}
	}

	result, _, err := p.program.Eval(map[string]interface{}{
		"user":   user,
		"item":   item,
		"acl":    int64(acl),
		"action": action,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate access policy: %w", err)
	}

	allowed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("access policy did not evaluate to boolean, got: %T", result.Value())
	}
	return allowed, nil
}
