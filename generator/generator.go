package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ridoystarlord/mongoprov/diff"
	"github.com/ridoystarlord/mongoprov/schema"
)

// PasswordHashEnv is read by generated scripts at run time; a hash is never
// written into a script.
const PasswordHashEnv = "ADMIN_PASSWORD_HASH"

// GenerateScript converts a list of Operations into mongosh statements that
// perform the same changes as a provisioning run.
func GenerateScript(database string, ops []diff.Operation) ([]string, error) {
	statements := []string{
		fmt.Sprintf("db = db.getSiblingDB(%s);", quote(database)),
	}

	for _, op := range ops {
		switch op.Type {
		case diff.CreateCollection:
			statements = append(statements, fmt.Sprintf("db.createCollection(%s);", quote(op.Collection)))

		case diff.CreateIndex:
			stmt, err := generateCreateIndex(op)
			if err != nil {
				return nil, fmt.Errorf("generate createIndex: %v", err)
			}
			statements = append(statements, stmt)

		case diff.IndexConflict:
			statements = append(statements, fmt.Sprintf("// skipped %s.%s: %s",
				op.Collection, op.Index.EffectiveName(), strings.ReplaceAll(op.Reason, "\n", " ")))

		case diff.BootstrapAdmin:
			statements = append(statements, generateAdmin(op)...)

		default:
			return nil, fmt.Errorf("unsupported operation %s", op.Type)
		}
	}

	statements = append(statements, "print('Database initialized successfully!');")
	return statements, nil
}

func generateCreateIndex(op diff.Operation) (string, error) {
	if op.Index == nil || len(op.Index.Keys) == 0 {
		return "", fmt.Errorf("index on %s has no keys", op.Collection)
	}

	keys := make([]string, 0, len(op.Index.Keys))
	for _, k := range op.Index.Keys {
		var v string
		switch k.Kind {
		case schema.Desc:
			v = "-1"
		case schema.Text:
			v = `"text"`
		default:
			v = "1"
		}
		keys = append(keys, fmt.Sprintf("%s: %s", quote(k.Field), v))
	}

	opts := []string{"name: " + quote(op.Index.EffectiveName())}
	if op.Index.Unique {
		opts = append(opts, "unique: true")
	}

	return fmt.Sprintf("db.getCollection(%s).createIndex({ %s }, { %s });",
		quote(op.Collection), strings.Join(keys, ", "), strings.Join(opts, ", ")), nil
}

func generateAdmin(op diff.Operation) []string {
	coll := fmt.Sprintf("db.getCollection(%s)", quote(op.Collection))
	doc := fmt.Sprintf("{ name: %s, password: process.env.%s, created_at: new Date(), updated_at: new Date() }",
		quote(op.AdminName), PasswordHashEnv)
	guard := fmt.Sprintf("if (!process.env.%s) { throw new Error('%s is not set'); }", PasswordHashEnv, PasswordHashEnv)

	if op.AdminPolicy == schema.ResetToSingle {
		return []string{
			guard,
			coll + ".deleteMany({});",
			coll + ".insertOne(" + doc + ");",
		}
	}
	return []string{
		guard,
		fmt.Sprintf("if (%s.countDocuments({}) === 0) { %s.insertOne(%s); }", coll, coll, doc),
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// WriteScript writes the statements to path, or to a timestamped file in dir
// when path is a directory.
func WriteScript(path string, statements []string) (string, error) {
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, time.Now().Format("20060102150405")+"_mongo-init.js")
	}

	var b strings.Builder
	b.WriteString("// Generated by mongoprov. Run with: mongosh \"$MONGODB_URI\" " + path + "\n")
	for _, stmt := range statements {
		b.WriteString(stmt)
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write script: %v", err)
	}
	return path, nil
}
