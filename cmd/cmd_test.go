package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/ridoystarlord/mongoprov/credential"
	"github.com/ridoystarlord/mongoprov/diff"
	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/loader"
	"github.com/ridoystarlord/mongoprov/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MONGOPROV_ADMIN_PASSWORD_HASH", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")

	out, err := executeCommand(t, "", "init", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Created "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, loader.BuiltinYAML(), data)

	_, err = executeCommand(t, "", "init", "--file", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = executeCommand(t, "", "init", "--file", path, "--force")
	assert.NoError(t, err)
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := executeCommand(t, "s3cret\n", "hash-password", "--cost", "4")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, credential.CheckHash(hash))
	assert.True(t, credential.Matches(hash, "s3cret"))

	_, err = executeCommand(t, "", "hash-password")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	out, err := executeCommand(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Schema validation passed!")
	assert.Contains(t, out, "• Errors: 0")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collections:
  - name: products
    indexes:
      - field: name
        kind: text
        unique: true
`), 0o600))

	out, err = executeCommand(t, "", "validate", "-s", path, "--format", "json")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, `"type": "unique_text_index"`)
	assert.Contains(t, out, `"valid": false`)
}

func TestGenerateOfflineDryRun(t *testing.T) {
	out, err := executeCommand(t, "", "generate", "--offline", "--dry-run", "--database", "shop")
	require.NoError(t, err)
	assert.Contains(t, out, `db = db.getSiblingDB("shop");`)
	assert.Contains(t, out, `db.createCollection("users");`)
	assert.Contains(t, out, `createIndex({ "email": 1 }, { name: "email_1" });`)
	assert.Contains(t, out, `{ name: "name_1", unique: true }`)
	assert.NotContains(t, out, "$2a$")
}

func TestGenerateOfflineWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.js")
	out, err := executeCommand(t, "", "generate", "--offline", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Script generated: "+path)
	assert.FileExists(t, path)
}

func TestProvisionRequiresHash(t *testing.T) {
	_, err := executeCommand(t, "", "provision")
	assert.ErrorContains(t, err, "admin password hash not set")

	_, err = executeCommand(t, "", "provision", "--admin-password-hash", "123")
	assert.ErrorContains(t, err, "rejected")
}

func TestInvalidConfigFails(t *testing.T) {
	_, err := executeCommand(t, "", "validate", "--admin-policy", "wipe")
	assert.Error(t, err)
}

func planFixture() (*schema.Definition, *introspect.State, []diff.Operation) {
	def := &schema.Definition{
		Database: "shop",
		Collections: []schema.Collection{
			{Name: "users", Indexes: []schema.Index{
				{Keys: []schema.Key{{Field: "email", Kind: schema.Asc}}, Unique: true},
				{Keys: []schema.Key{{Field: "phone", Kind: schema.Asc}}, Unique: true},
			}},
			{Name: "orders", Indexes: []schema.Index{{Keys: []schema.Key{{Field: "created_at", Kind: schema.Desc}}}}},
		},
	}
	def.ApplyDefaults()

	state := introspect.NewState("shop")
	state.Collections["users"] = introspect.ExistingCollection{Name: "users", Indexes: []schema.Index{
		{Name: "email_1", Keys: []schema.Key{{Field: "email", Kind: schema.Asc}}},
	}}
	state.Collections["legacy"] = introspect.ExistingCollection{Name: "legacy"}
	return def, state, diff.DiffDefinition(def, state, 0)
}

func TestShowPlan(t *testing.T) {
	def, _, ops := planFixture()

	var buf bytes.Buffer
	showPlan(&buf, def, ops)
	out := buf.String()
	assert.Contains(t, out, "📋 users:")
	assert.Contains(t, out, "⚠️  CONFLICT email_1")
	assert.Contains(t, out, "➕ CREATE INDEX phone_1")
	assert.Contains(t, out, "📋 orders:")
	assert.Contains(t, out, "➕ CREATE COLLECTION")
	assert.Contains(t, out, `insert admin "admin" into admins`)
	assert.Contains(t, out, "1 collection(s), 2 index(es) to create, 1 conflict(s)")

	buf.Reset()
	showPlan(&buf, def, nil)
	assert.Contains(t, buf.String(), "No differences found")
}

func TestShowStatus(t *testing.T) {
	def, state, ops := planFixture()

	var buf bytes.Buffer
	showStatus(&buf, def, state, ops)
	out := buf.String()
	assert.Contains(t, out, "COLLECTION")
	assert.Regexp(t, `users\s+\|\s+yes\s+\|\s+0/2\s+\|\s+1\s+\|\s+1`, out)
	assert.Regexp(t, `orders\s+\|\s+no\s+\|\s+0/1\s+\|\s+1\s+\|\s+0`, out)
	assert.Contains(t, out, "🕒 pending")
	assert.Contains(t, out, "- legacy")
}
