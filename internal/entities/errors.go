package entities

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies relationship engine failures
type ErrorKind int

const (
	KindNoPath ErrorKind = iota + 1
	KindInvalidType
	KindDuplicate
	KindNotFound
	KindPermission
	KindWrite
)

// Numeric error codes carried by RelationshipError
const (
	CodeNoPath       = 280
	CodeDuplicate    = 1100
	CodeInvalidTable = 1240
	CodeInvalidType  = 2510
	CodeNotFound     = 750
	CodePermission   = 2320
	CodeWrite        = 795
)

// String returns a string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNoPath:
		return "no_path"
	case KindInvalidType:
		return "invalid_type"
	case KindDuplicate:
		return "duplicate_relationship"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission_denied"
	case KindWrite:
		return "write_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Sentinels usable with errors.Is against any *RelationshipError of the same kind
var (
	ErrNoPath                = &RelationshipError{Kind: KindNoPath, Code: CodeNoPath}
	ErrInvalidType           = &RelationshipError{Kind: KindInvalidType, Code: CodeInvalidType}
	ErrDuplicateRelationship = &RelationshipError{Kind: KindDuplicate, Code: CodeDuplicate}
	ErrNotFound              = &RelationshipError{Kind: KindNotFound, Code: CodeNotFound}
	ErrPermission            = &RelationshipError{Kind: KindPermission, Code: CodePermission}
	ErrWrite                 = &RelationshipError{Kind: KindWrite, Code: CodeWrite}
)

// ErrSubjectNotLoaded is returned when an operation is attempted on a subject
// without a primary key. Callers treat it as a no-op, not a failure.
var ErrSubjectNotLoaded = errors.New("subject is not loaded")

// ErrTargetNotFound is returned when a non-numeric target identifier does not
// resolve through the target's idno field.
var ErrTargetNotFound = errors.New("target not found")

// RelationshipError is the error returned by relationship operations
type RelationshipError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Context string // Operation that produced the error (e.g., "Add", "Move")
	Err     error  // Underlying writer error, if any
}

// Error implements the error interface
func (e *RelationshipError) Error() string {
	var sb strings.Builder
	if e.Context != "" {
		sb.WriteString(e.Context)
		sb.WriteString(": ")
	}
	if e.Message != "" {
		sb.WriteString(e.Message)
	} else {
		sb.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying writer error
func (e *RelationshipError) Unwrap() error {
	return e.Err
}

// Is matches any RelationshipError of the same kind
func (e *RelationshipError) Is(target error) bool {
	var t *RelationshipError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewNoPathError creates a NoPathError for the given table pair
func NewNoPathError(context, subject, target string) *RelationshipError {
	return &RelationshipError{
		Kind:    KindNoPath,
		Code:    CodeNoPath,
		Message: fmt.Sprintf("could not find a path from %s to %s", subject, target),
		Context: context,
	}
}

// NewInvalidTableError creates a NoPathError for an unknown table reference
func NewInvalidTableError(context, ref string) *RelationshipError {
	return &RelationshipError{
		Kind:    KindNoPath,
		Code:    CodeInvalidTable,
		Message: fmt.Sprintf("related table reference %q is not valid", ref),
		Context: context,
	}
}

// NewInvalidTypeError creates an InvalidTypeError for a relationship type reference
func NewInvalidTypeError(context, typeRef, table string) *RelationshipError {
	return &RelationshipError{
		Kind:    KindInvalidType,
		Code:    CodeInvalidType,
		Message: fmt.Sprintf("type id %q is not valid for %s", typeRef, table),
		Context: context,
	}
}

// NewDuplicateError creates a DuplicateRelationshipError
func NewDuplicateError(context string, existing []int64) *RelationshipError {
	return &RelationshipError{
		Kind:    KindDuplicate,
		Code:    CodeDuplicate,
		Message: fmt.Sprintf("relationship already exists (relation ids %v)", existing),
		Context: context,
	}
}

// NewNotFoundError creates a NotFoundError for a row of the given table
func NewNotFoundError(context, table string, id int64) *RelationshipError {
	return &RelationshipError{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s row %d does not exist", table, id),
		Context: context,
	}
}

// NewPermissionError creates a PermissionError
func NewPermissionError(context, message string) *RelationshipError {
	return &RelationshipError{
		Kind:    KindPermission,
		Code:    CodePermission,
		Message: message,
		Context: context,
	}
}

// NewWriteError wraps a persistence failure, keeping the writer's message
func NewWriteError(context string, err error) *RelationshipError {
	return &RelationshipError{
		Kind:    KindWrite,
		Code:    CodeWrite,
		Message: "could not write relationship",
		Context: context,
		Err:     err,
	}
}

// PostedError is one (code, message, context) entry of an ErrorList
type PostedError struct {
	Code    int
	Message string
	Context string
}

// ErrorList accumulates posted errors for callers that surface them to end users
type ErrorList struct {
	errors []PostedError
}

// Post appends a relationship error to the list
func (l *ErrorList) Post(err *RelationshipError) {
	if l == nil || err == nil {
		return
	}
	l.errors = append(l.errors, PostedError{Code: err.Code, Message: err.Error(), Context: err.Context})
}

// Errors returns the posted errors in order
func (l *ErrorList) Errors() []PostedError {
	if l == nil {
		return nil
	}
	return l.errors
}

// Count returns the number of posted errors
func (l *ErrorList) Count() int {
	if l == nil {
		return 0
	}
	return len(l.errors)
}

// Clear removes all posted errors
func (l *ErrorList) Clear() {
	if l != nil {
		l.errors = nil
	}
}
