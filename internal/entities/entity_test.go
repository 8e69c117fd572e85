package entities

import "testing"

func TestEntityDef_GetReference(t *testing.T) {
	entity := &EntityDef{
		Name: "items",
		Key:  "item_id",
		References: []*ForeignKey{
			{Field: "collection_id", Table: "collections"},
			{Field: "storage_location_id", Table: "storage_locations"},
		},
	}

	tests := []struct {
		name  string
		table string
		want  string
	}{
		{name: "first reference", table: "collections", want: "collection_id"},
		{name: "second reference", table: "storage_locations", want: "storage_location_id"},
		{name: "unknown table", table: "tags", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entity.GetReference(tt.table)
			if tt.want == "" {
				if got != nil {
					t.Errorf("EntityDef.GetReference() = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.Field != tt.want {
				t.Errorf("EntityDef.GetReference() = %+v, want field %s", got, tt.want)
			}
		})
	}
}

func TestLinkDef_Sides(t *testing.T) {
	link := &LinkDef{
		Name:       "items_x_tags",
		LeftTable:  "items",
		LeftField:  "item_id",
		RightTable: "tags",
		RightField: "tag_id",
	}

	own, other, ok := link.Sides("tags")
	if !ok || own != "tag_id" || other != "item_id" {
		t.Errorf("Sides(tags) = %s, %s, %v", own, other, ok)
	}

	own, other, ok = link.Sides("items")
	if !ok || own != "item_id" || other != "tag_id" {
		t.Errorf("Sides(items) = %s, %s, %v", own, other, ok)
	}

	if _, _, ok := link.Sides("collections"); ok {
		t.Error("Sides(collections) should not match")
	}

	if link.IsSelf() {
		t.Error("items_x_tags is not a self link")
	}
	if link.OtherTable("items") != "tags" || link.OtherTable("tags") != "items" {
		t.Error("OtherTable() returned the wrong side")
	}
}

func TestRelation_SideAccessors(t *testing.T) {
	link := &LinkDef{Name: "items_x_items", LeftTable: "items", LeftField: "item_left_id", RightTable: "items", RightField: "item_right_id"}
	rel := &Relation{LinkTable: link.Name, LeftID: 1, RightID: 2}

	if rel.Side(link, "item_right_id") != 2 {
		t.Errorf("Side() = %d, want 2", rel.Side(link, "item_right_id"))
	}
	rel.SetSide(link, "item_left_id", 9)
	if rel.LeftID != 9 {
		t.Errorf("SetSide() left = %d, want 9", rel.LeftID)
	}

	clone := rel.Clone()
	clone.RightID = 5
	if rel.RightID != 2 {
		t.Error("Clone() shares state with the original")
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"", "ltor", "rtol"} {
		if _, err := ParseDirection(s); err != nil {
			t.Errorf("ParseDirection(%q) error = %v", s, err)
		}
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Error("ParseDirection(up) should fail")
	}
}
