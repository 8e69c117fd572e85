package entities

import "testing"

func TestResolution_LinkTable(t *testing.T) {
	tags := &LinkDef{Name: "items_x_tags", LeftTable: "items", LeftField: "item_id", RightTable: "tags", RightField: "tag_id"}
	self := &LinkDef{Name: "items_x_items", LeftTable: "items", LeftField: "item_left_id", RightTable: "items", RightField: "item_right_id"}

	tests := []struct {
		name     string
		path     Path
		wantKind PathKind
		want     string
	}{
		{
			name:     "self relation",
			path:     &SelfRelationPath{Table: "items", Link: self},
			wantKind: PathSelfRelation,
			want:     "items_x_items",
		},
		{
			name:     "many to many",
			path:     &ManyToManyPath{Subject: "tags", Target: "items", Link: tags},
			wantKind: PathManyToMany,
			want:     "items_x_tags",
		},
		{
			name:     "many to one",
			path:     &ManyToOnePath{Subject: "collections", Target: "items", OneTable: "collections", ManyTable: "items", FKField: "collection_id"},
			wantKind: PathManyToOne,
			want:     "items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Resolution{Path: tt.path}
			if res.Path.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", res.Path.Kind(), tt.wantKind)
			}
			if got := res.LinkTable(); got != tt.want {
				t.Errorf("LinkTable() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestManyToManyPath_Fields(t *testing.T) {
	link := &LinkDef{Name: "items_x_tags", LeftTable: "items", LeftField: "item_id", RightTable: "tags", RightField: "tag_id"}
	p := &ManyToManyPath{Subject: "tags", Target: "items", Link: link}

	if p.SubjectField() != "tag_id" || p.TargetField() != "item_id" {
		t.Errorf("fields = %s/%s, want tag_id/item_id", p.SubjectField(), p.TargetField())
	}
	if p.SubjectIsLeft() {
		t.Error("tags is on the right side of items_x_tags")
	}
	if got := p.Tables(); len(got) != 3 || got[1] != "items_x_tags" {
		t.Errorf("Tables() = %v", got)
	}
}
