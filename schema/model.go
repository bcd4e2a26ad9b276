package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Definition is the desired end state of a database: which collections exist,
// which indexes they carry and how the seed administrator is bootstrapped.
type Definition struct {
	Version     string       `yaml:"version,omitempty" json:"version,omitempty"`
	Database    string       `yaml:"database" json:"database"`
	Collections []Collection `yaml:"collections" json:"collections"`
	Admin       Admin        `yaml:"admin" json:"admin"`
}

type Collection struct {
	Name    string  `yaml:"name" json:"name"`
	Indexes []Index `yaml:"indexes,omitempty" json:"indexes,omitempty"`
}

type Index struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Keys   []Key  `yaml:"keys" json:"keys"`
	Unique bool   `yaml:"unique,omitempty" json:"unique,omitempty"`
}

type Key struct {
	Field string  `yaml:"field" json:"field"`
	Kind  KeyKind `yaml:"kind" json:"kind"`
}

type KeyKind string

const (
	Asc  KeyKind = "asc"
	Desc KeyKind = "desc"
	Text KeyKind = "text"
)

// Value is the key value MongoDB expects in an index specification.
func (k KeyKind) Value() interface{} {
	switch k {
	case Desc:
		return int32(-1)
	case Text:
		return "text"
	default:
		return int32(1)
	}
}

func (k KeyKind) suffix() string {
	switch k {
	case Desc:
		return "-1"
	case Text:
		return "text"
	default:
		return "1"
	}
}

type AdminPolicy string

const (
	InsertIfAbsent AdminPolicy = "insert-if-absent"
	ResetToSingle  AdminPolicy = "reset-to-single"
)

func ParseAdminPolicy(s string) (AdminPolicy, error) {
	switch p := AdminPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case InsertIfAbsent, ResetToSingle:
		return p, nil
	}
	return "", fmt.Errorf("unknown admin policy %q (want %s or %s)", s, InsertIfAbsent, ResetToSingle)
}

type Admin struct {
	Collection string      `yaml:"collection" json:"collection"`
	Name       string      `yaml:"name" json:"name"`
	Policy     AdminPolicy `yaml:"policy" json:"policy"`
}

const (
	DefaultDatabase        = "ecommerce"
	DefaultAdminCollection = "admins"
	DefaultAdminName       = "admin"
	DefaultAdminPolicy     = InsertIfAbsent
)

// ApplyDefaults fills the optional fields left empty by a schema file.
func (d *Definition) ApplyDefaults() {
	if d.Database == "" {
		d.Database = DefaultDatabase
	}
	if d.Admin.Collection == "" {
		d.Admin.Collection = DefaultAdminCollection
	}
	if d.Admin.Name == "" {
		d.Admin.Name = DefaultAdminName
	}
	if d.Admin.Policy == "" {
		d.Admin.Policy = DefaultAdminPolicy
	}
}

// CollectionNames returns the declared collection names in declaration order.
func (d *Definition) CollectionNames() []string {
	names := make([]string, 0, len(d.Collections))
	for _, c := range d.Collections {
		names = append(names, c.Name)
	}
	return names
}

// IndexCount is the number of declared indexes across all collections.
func (d *Definition) IndexCount() int {
	n := 0
	for _, c := range d.Collections {
		n += len(c.Indexes)
	}
	return n
}

// DefaultName mirrors the name mongod generates when none is supplied,
// e.g. "email_1" or "name_text_description_text".
func (i Index) DefaultName() string {
	parts := make([]string, 0, len(i.Keys)*2)
	for _, k := range i.Keys {
		parts = append(parts, k.Field, k.Kind.suffix())
	}
	return strings.Join(parts, "_")
}

// EffectiveName is the explicit name if set, the generated one otherwise.
func (i Index) EffectiveName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.DefaultName()
}

func (i Index) IsText() bool {
	for _, k := range i.Keys {
		if k.Kind == Text {
			return true
		}
	}
	return false
}

// Signature identifies an index by its key specification alone. Text keys
// are order-insensitive because mongod stores them as a weights document.
func (i Index) Signature() string {
	var ordered, text []string
	for _, k := range i.Keys {
		if k.Kind == Text {
			text = append(text, k.Field)
			continue
		}
		ordered = append(ordered, k.Field+":"+k.Kind.suffix())
	}
	if len(text) > 0 {
		sort.Strings(text)
		ordered = append(ordered, "text("+strings.Join(text, ",")+")")
	}
	return strings.Join(ordered, ",")
}

// SameAs reports whether two indexes have the same keys and uniqueness.
func (i Index) SameAs(o Index) bool {
	return i.Signature() == o.Signature() && i.Unique == o.Unique
}

func (i Index) String() string {
	s := i.EffectiveName() + " {" + i.Signature() + "}"
	if i.Unique {
		s += " unique"
	}
	return s
}
