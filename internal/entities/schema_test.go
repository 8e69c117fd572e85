package entities

import "testing"

func TestDatamodel_Lookups(t *testing.T) {
	model := &Datamodel{
		Entities: []*EntityDef{
			{Name: "items", Number: 57},
			{Name: "tags", Number: 58},
		},
		Links: []*LinkDef{
			{Name: "items_x_tags", Number: 101},
		},
		Labels: []*LabelDef{
			{Name: "item_labels"},
		},
	}

	tests := []struct {
		name   string
		lookup func() bool
	}{
		{name: "existing entity", lookup: func() bool { return model.GetEntity("tags") != nil }},
		{name: "missing entity", lookup: func() bool { return model.GetEntity("places") == nil }},
		{name: "existing link", lookup: func() bool { return model.GetLink("items_x_tags") != nil }},
		{name: "entity is not a link", lookup: func() bool { return model.GetLink("items") == nil }},
		{name: "existing labels", lookup: func() bool { return model.GetLabels("item_labels") != nil }},
		{name: "empty name", lookup: func() bool { return model.GetEntity("") == nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.lookup() {
				t.Errorf("lookup %s returned an unexpected result", tt.name)
			}
		})
	}
}
