package diff

import (
	"fmt"

	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/schema"
)

type OperationType string

const (
	CreateCollection OperationType = "CREATE_COLLECTION"
	CreateIndex      OperationType = "CREATE_INDEX"
	IndexConflict    OperationType = "INDEX_CONFLICT"
	BootstrapAdmin   OperationType = "BOOTSTRAP_ADMIN"
)

type Operation struct {
	Type       OperationType
	Collection string
	Index      *schema.Index // for CREATE_INDEX, INDEX_CONFLICT
	Existing   *schema.Index // for INDEX_CONFLICT
	Reason     string        // for INDEX_CONFLICT

	AdminName   string             // for BOOTSTRAP_ADMIN
	AdminPolicy schema.AdminPolicy // for BOOTSTRAP_ADMIN
	AdminRemove int64              // for BOOTSTRAP_ADMIN, records removed by reset-to-single
}

func (op Operation) String() string {
	switch op.Type {
	case CreateCollection:
		return fmt.Sprintf("create collection %s", op.Collection)
	case CreateIndex:
		return fmt.Sprintf("create index %s.%s", op.Collection, op.Index)
	case IndexConflict:
		return fmt.Sprintf("index conflict on %s.%s: %s", op.Collection, op.Index.EffectiveName(), op.Reason)
	case BootstrapAdmin:
		if op.AdminPolicy == schema.ResetToSingle {
			return fmt.Sprintf("reset %s to single admin %q (removing %d)", op.Collection, op.AdminName, op.AdminRemove)
		}
		return fmt.Sprintf("insert admin %q into %s", op.AdminName, op.Collection)
	}
	return string(op.Type)
}

// DiffDefinition computes what a provisioning run would do to bring the live
// state in line with def. Nothing is ever dropped: collections and indexes
// that exist only in the database are left alone. adminCount is the number of
// records currently in the admin collection.
func DiffDefinition(def *schema.Definition, existing *introspect.State, adminCount int64) []Operation {
	var ops []Operation
	ops = append(ops, DiffCollections(def, existing)...)
	ops = append(ops, DiffIndexes(def, existing)...)
	if op, ok := DiffAdmin(def, adminCount); ok {
		ops = append(ops, op)
	}
	return ops
}

// DiffCollections lists declared collections absent from the database, in
// declaration order.
func DiffCollections(def *schema.Definition, existing *introspect.State) []Operation {
	var ops []Operation
	for _, coll := range def.Collections {
		if _, exists := existing.Collection(coll.Name); !exists {
			ops = append(ops, Operation{Type: CreateCollection, Collection: coll.Name})
		}
	}
	return ops
}

// DiffIndexes lists the indexes to create, and the declared indexes that
// cannot be created because the live database holds an incompatible one.
func DiffIndexes(def *schema.Definition, existing *introspect.State) []Operation {
	var ops []Operation
	for _, coll := range def.Collections {
		live, exists := existing.Collection(coll.Name)
		for i := range coll.Indexes {
			idx := coll.Indexes[i]
			if !exists {
				ops = append(ops, Operation{Type: CreateIndex, Collection: coll.Name, Index: &idx})
				continue
			}
			if op, needed := diffIndex(coll.Name, idx, live); needed {
				ops = append(ops, op)
			}
		}
	}
	return ops
}

func diffIndex(collection string, idx schema.Index, live introspect.ExistingCollection) (Operation, bool) {
	if same, ok := live.IndexLike(idx); ok {
		if same.Unique == idx.Unique {
			return Operation{}, false
		}
		return conflict(collection, idx, same,
			fmt.Sprintf("same keys already indexed by %s with unique=%t", same.Name, same.Unique)), true
	}

	if named, ok := live.IndexByName(idx.EffectiveName()); ok {
		return conflict(collection, idx, named,
			fmt.Sprintf("name already used by index on {%s}", named.Signature())), true
	}

	if idx.IsText() {
		for _, other := range live.Indexes {
			if other.IsText() {
				return conflict(collection, idx, other,
					fmt.Sprintf("collection already has text index %s", other.Name)), true
			}
		}
	}

	return Operation{Type: CreateIndex, Collection: collection, Index: &idx}, true
}

func conflict(collection string, idx, existing schema.Index, reason string) Operation {
	return Operation{
		Type:       IndexConflict,
		Collection: collection,
		Index:      &idx,
		Existing:   &existing,
		Reason:     reason,
	}
}

// DiffAdmin reports whether the admin bootstrap step would write anything.
func DiffAdmin(def *schema.Definition, adminCount int64) (Operation, bool) {
	op := Operation{
		Type:        BootstrapAdmin,
		Collection:  def.Admin.Collection,
		AdminName:   def.Admin.Name,
		AdminPolicy: def.Admin.Policy,
	}
	switch def.Admin.Policy {
	case schema.ResetToSingle:
		op.AdminRemove = adminCount
		return op, true
	default:
		return op, adminCount == 0
	}
}

// Count returns the number of operations of type t.
func Count(ops []Operation, t OperationType) int {
	n := 0
	for _, op := range ops {
		if op.Type == t {
			n++
		}
	}
	return n
}
