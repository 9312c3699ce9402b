package mist

import (
	"fmt"
	"slices"
)

// SchemaLevel is the message definition layer: 0 is the C2MS core,
// 1 through 6 are organization or mission extensions.
type SchemaLevel int

// Schema levels
const (
	LevelC2MS SchemaLevel = iota
	Level1
	Level2
	Level3
	Level4
	Level5
	Level6

	MaxSchemaLevel = Level6
)

// Valid reports whether l is within the supported range
func (l SchemaLevel) Valid() bool {
	return l >= LevelC2MS && l <= MaxSchemaLevel
}

// String returns "LEVEL-n"
func (l SchemaLevel) String() string {
	return fmt.Sprintf("LEVEL-%d", int(l))
}

// SchemaTemplate is one entry of the schema directory
type SchemaTemplate struct {
	ID          string
	Level       SchemaLevel
	Description string
	File        string
}

// LevelDefinition names a schema level and its header source
type LevelDefinition struct {
	Level  SchemaLevel
	Name   string
	Header string
}

// Directory lists the schema IDs of a specification in load order
type Directory struct {
	specification string
	version       string
	levels        []LevelDefinition
	schemas       []SchemaTemplate
}

// Specification returns the specification name, e.g. C2MS
func (d *Directory) Specification() string { return d.specification }

// Version returns the directory version string, e.g. 2019.00
func (d *Directory) Version() string { return d.version }

// Levels returns the level definitions in ascending order
func (d *Directory) Levels() []LevelDefinition { return slices.Clone(d.levels) }

// LevelName returns the name of a level, or its String form when undefined
func (d *Directory) LevelName(level SchemaLevel) string {
	for _, l := range d.levels {
		if l.Level == level {
			return l.Name
		}
	}
	return level.String()
}

// Schemas returns every entry in directory order
func (d *Directory) Schemas() []SchemaTemplate { return slices.Clone(d.schemas) }

// SchemasAt returns the entries defined at exactly level
func (d *Directory) SchemasAt(level SchemaLevel) []SchemaTemplate {
	var out []SchemaTemplate
	for _, s := range d.schemas {
		if s.Level == level {
			out = append(out, s)
		}
	}
	return out
}

// Lookup finds the entry for id at the highest level not above max
func (d *Directory) Lookup(id string, max SchemaLevel) (SchemaTemplate, bool) {
	var (
		found SchemaTemplate
		ok    bool
	)
	for _, s := range d.schemas {
		if s.ID == id && s.Level <= max && (!ok || s.Level > found.Level) {
			found, ok = s, true
		}
	}
	return found, ok
}

func (d *Directory) copy() *Directory {
	if d == nil {
		return nil
	}
	c := *d
	c.levels = slices.Clone(d.levels)
	c.schemas = slices.Clone(d.schemas)
	return &c
}
