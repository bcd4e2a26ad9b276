package diff

import (
	"testing"

	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asc(field string) schema.Key  { return schema.Key{Field: field, Kind: schema.Asc} }
func text(field string) schema.Key { return schema.Key{Field: field, Kind: schema.Text} }

func testDefinition() *schema.Definition {
	def := &schema.Definition{
		Database: "shop",
		Collections: []schema.Collection{
			{Name: "users", Indexes: []schema.Index{{Keys: []schema.Key{asc("email")}, Unique: true}}},
			{Name: "products", Indexes: []schema.Index{{Keys: []schema.Key{text("name"), text("description")}}}},
			{Name: "admins", Indexes: []schema.Index{{Keys: []schema.Key{asc("name")}, Unique: true}}},
		},
	}
	def.ApplyDefaults()
	return def
}

func TestDiffEmptyDatabase(t *testing.T) {
	def := testDefinition()
	ops := DiffDefinition(def, introspect.NewState("shop"), 0)

	assert.Equal(t, 3, Count(ops, CreateCollection))
	assert.Equal(t, 3, Count(ops, CreateIndex))
	assert.Equal(t, 1, Count(ops, BootstrapAdmin))
	assert.Equal(t, 0, Count(ops, IndexConflict))

	assert.Equal(t, "create collection users", ops[0].String())
	assert.Equal(t, CreateIndex, ops[3].Type)
	assert.Equal(t, `insert admin "admin" into admins`, ops[len(ops)-1].String())
}

func TestDiffProvisionedDatabase(t *testing.T) {
	def := testDefinition()
	state := introspect.NewState("shop")
	state.Collections["users"] = introspect.ExistingCollection{Name: "users", Indexes: []schema.Index{
		{Name: "email_1", Keys: []schema.Key{asc("email")}, Unique: true},
	}}
	state.Collections["products"] = introspect.ExistingCollection{Name: "products", Indexes: []schema.Index{
		{Name: "name_text_description_text", Keys: []schema.Key{text("description"), text("name")}},
	}}
	state.Collections["admins"] = introspect.ExistingCollection{Name: "admins", Indexes: []schema.Index{
		{Name: "name_1", Keys: []schema.Key{asc("name")}, Unique: true},
	}}
	state.Collections["legacy"] = introspect.ExistingCollection{Name: "legacy"}

	assert.Empty(t, DiffDefinition(def, state, 1))
}

func TestDiffIndexConflicts(t *testing.T) {
	def := testDefinition()
	state := introspect.NewState("shop")
	state.Collections["users"] = introspect.ExistingCollection{Name: "users", Indexes: []schema.Index{
		{Name: "email_1", Keys: []schema.Key{asc("email")}},
	}}
	state.Collections["products"] = introspect.ExistingCollection{Name: "products", Indexes: []schema.Index{
		{Name: "title_text", Keys: []schema.Key{text("title")}},
	}}
	state.Collections["admins"] = introspect.ExistingCollection{Name: "admins", Indexes: []schema.Index{
		{Name: "name_1", Keys: []schema.Key{asc("login")}},
	}}

	ops := DiffIndexes(def, state)
	require.Len(t, ops, 3)
	for _, op := range ops {
		assert.Equal(t, IndexConflict, op.Type, op.String())
		assert.NotNil(t, op.Existing)
	}
	assert.Contains(t, ops[0].Reason, "unique=false")
	assert.Contains(t, ops[1].Reason, "title_text")
	assert.Contains(t, ops[2].Reason, "name already used")
}

func TestDiffMissingIndexOnExistingCollection(t *testing.T) {
	def := testDefinition()
	state := introspect.NewState("shop")
	state.Collections["users"] = introspect.ExistingCollection{Name: "users"}

	ops := DiffIndexes(def, state)
	require.Len(t, ops, 3)
	assert.Equal(t, CreateIndex, ops[0].Type)
	assert.Equal(t, "users", ops[0].Collection)
	assert.Equal(t, "email_1", ops[0].Index.EffectiveName())
}

func TestDiffAdmin(t *testing.T) {
	def := testDefinition()

	_, needed := DiffAdmin(def, 2)
	assert.False(t, needed)

	op, needed := DiffAdmin(def, 0)
	assert.True(t, needed)
	assert.Equal(t, schema.InsertIfAbsent, op.AdminPolicy)

	def.Admin.Policy = schema.ResetToSingle
	op, needed = DiffAdmin(def, 2)
	assert.True(t, needed)
	assert.Equal(t, int64(2), op.AdminRemove)
	assert.Equal(t, `reset admins to single admin "admin" (removing 2)`, op.String())
}
