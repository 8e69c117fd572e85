package entities

import "time"

// Datamodel represents the complete set of entity, link and label tables
// the relationship engine knows about
type Datamodel struct {
	Version   string       `yaml:"version,omitempty"` // Datamodel version (UUID)
	DSL       string       `yaml:"-"`                 // Original DSL text
	Entities  []*EntityDef `yaml:"entities"`
	Links     []*LinkDef   `yaml:"links"`
	Labels    []*LabelDef  `yaml:"labels,omitempty"`
	CreatedAt time.Time    `yaml:"created_at,omitempty"`
}

// DatamodelVersion represents a lightweight datamodel version for listing
type DatamodelVersion struct {
	Version   string    // Datamodel version (UUID)
	CreatedAt time.Time // When the version was created
}

// GetEntity returns the entity definition by table name
func (d *Datamodel) GetEntity(name string) *EntityDef {
	for _, e := range d.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// GetLink returns the link definition by table name
func (d *Datamodel) GetLink(name string) *LinkDef {
	for _, l := range d.Links {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// GetLabels returns the label table definition by name
func (d *Datamodel) GetLabels(name string) *LabelDef {
	for _, l := range d.Labels {
		if l.Name == name {
			return l
		}
	}
	return nil
}
