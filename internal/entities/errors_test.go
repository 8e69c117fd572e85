package entities

import (
	"errors"
	"fmt"
	"testing"
)

func TestRelationshipError_Is(t *testing.T) {
	dup := NewDuplicateError("Add", []int64{4})
	wrapped := fmt.Errorf("failed to add relationship: %w", dup)

	if !errors.Is(wrapped, ErrDuplicateRelationship) {
		t.Error("errors.Is(wrapped, ErrDuplicateRelationship) = false")
	}
	if errors.Is(wrapped, ErrNoPath) {
		t.Error("duplicate error should not match ErrNoPath")
	}

	var relErr *RelationshipError
	if !errors.As(wrapped, &relErr) {
		t.Fatal("errors.As did not find the RelationshipError")
	}
	if relErr.Code != CodeDuplicate {
		t.Errorf("Code = %d, want %d", relErr.Code, CodeDuplicate)
	}
}

func TestRelationshipError_Error(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed")
	tests := []struct {
		name string
		err  *RelationshipError
		want string
	}{
		{
			name: "no path",
			err:  NewNoPathError("Add", "items", "loans"),
			want: "Add: could not find a path from items to loans",
		},
		{
			name: "write error keeps writer message",
			err:  NewWriteError("Edit", cause),
			want: "Edit: could not write relationship: UNIQUE constraint failed",
		},
		{
			name: "kind fallback",
			err:  &RelationshipError{Kind: KindPermission},
			want: "permission_denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(NewWriteError("Edit", cause), cause) {
		t.Error("write error should unwrap to the writer error")
	}
}

func TestErrorList(t *testing.T) {
	var nilList *ErrorList
	nilList.Post(NewNotFoundError("Edit", "items_x_tags", 3))
	if nilList.Count() != 0 {
		t.Error("nil list should ignore posts")
	}

	list := &ErrorList{}
	list.Post(NewInvalidTypeError("Add", "depicts", "items_x_tags"))
	list.Post(NewNotFoundError("Edit", "items_x_tags", 3))

	if list.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", list.Count())
	}
	if list.Errors()[0].Code != CodeInvalidType || list.Errors()[1].Context != "Edit" {
		t.Errorf("Errors() = %+v", list.Errors())
	}

	list.Clear()
	if list.Count() != 0 {
		t.Error("Clear() did not empty the list")
	}
}
