package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ridoystarlord/mongoprov/schema"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Type       string `json:"type"`
	Collection string `json:"collection,omitempty"`
	Field      string `json:"field,omitempty"`
	Index      string `json:"index,omitempty"`
	Message    string `json:"message"`
	Severity   string `json:"severity"` // "error", "warning", "info"
}

// ValidationResult contains all validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

// Err folds the collected errors into one error, or nil when valid.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("invalid schema definition: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) addError(e ValidationError) {
	e.Severity = "error"
	r.Errors = append(r.Errors, e)
}

func (r *ValidationResult) addWarning(e ValidationError) {
	e.Severity = "warning"
	r.Warnings = append(r.Warnings, e)
}

func (r *ValidationResult) addInfo(e ValidationError) {
	e.Severity = "info"
	r.Info = append(r.Info, e)
}

// Duplicate is a value shared by more than one document on the fields of a
// unique index.
type Duplicate struct {
	Value string
	Count int64
}

// DuplicateScanner looks up live data that would break a unique index.
type DuplicateScanner interface {
	CollectionNames(ctx context.Context) ([]string, error)
	FindDuplicates(ctx context.Context, collection string, fields []string, limit int) ([]Duplicate, error)
}

// SchemaValidator validates schema definitions, optionally against live data.
type SchemaValidator struct {
	scanner DuplicateScanner
}

// NewSchemaValidator creates a validator. A nil scanner restricts it to
// offline checks.
func NewSchemaValidator(scanner DuplicateScanner) *SchemaValidator {
	return &SchemaValidator{scanner: scanner}
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}
}

// ValidateDefinition performs the structural checks that need no database.
func (v *SchemaValidator) ValidateDefinition(def *schema.Definition) *ValidationResult {
	result := newResult()

	if err := validateDatabaseName(def.Database); err != nil {
		result.addError(ValidationError{Type: "database_name", Message: err.Error()})
	}

	if len(def.Collections) == 0 {
		result.addWarning(ValidationError{Type: "no_collections", Message: "Definition declares no collections"})
	}

	seen := map[string]bool{}
	for _, coll := range def.Collections {
		if err := validateCollectionName(coll.Name); err != nil {
			result.addError(ValidationError{Type: "collection_name", Collection: coll.Name, Message: err.Error()})
			continue
		}
		if seen[coll.Name] {
			result.addError(ValidationError{
				Type:       "duplicate_collection",
				Collection: coll.Name,
				Message:    fmt.Sprintf("Duplicate collection '%s'", coll.Name),
			})
			continue
		}
		seen[coll.Name] = true
		v.validateIndexes(coll, result)
	}

	v.validateAdmin(def, seen, result)

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateOnline runs ValidateDefinition and then, for every unique index,
// looks for existing documents that would make the index build fail.
func (v *SchemaValidator) ValidateOnline(ctx context.Context, def *schema.Definition) (*ValidationResult, error) {
	result := v.ValidateDefinition(def)
	if v.scanner == nil || !result.Valid {
		return result, nil
	}

	names, err := v.scanner.CollectionNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %v", err)
	}
	existing := map[string]bool{}
	for _, n := range names {
		existing[n] = true
	}

	for _, coll := range def.Collections {
		if !existing[coll.Name] {
			result.addInfo(ValidationError{
				Type:       "collection_missing",
				Collection: coll.Name,
				Message:    fmt.Sprintf("Collection '%s' does not exist yet and will be created", coll.Name),
			})
			continue
		}
		for _, idx := range coll.Indexes {
			if !idx.Unique {
				continue
			}
			fields := make([]string, 0, len(idx.Keys))
			for _, k := range idx.Keys {
				fields = append(fields, k.Field)
			}
			dups, err := v.scanner.FindDuplicates(ctx, coll.Name, fields, 5)
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s for duplicates: %v", coll.Name, err)
			}
			for _, d := range dups {
				result.addError(ValidationError{
					Type:       "unique_violation",
					Collection: coll.Name,
					Index:      idx.EffectiveName(),
					Field:      strings.Join(fields, ","),
					Message: fmt.Sprintf("Unique index '%s' cannot be built: value %s appears in %d documents",
						idx.EffectiveName(), d.Value, d.Count),
				})
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

func (v *SchemaValidator) validateIndexes(coll schema.Collection, result *ValidationResult) {
	names := map[string]bool{}
	signatures := map[string]string{}
	textIndexes := 0

	for _, idx := range coll.Indexes {
		name := idx.EffectiveName()

		if len(idx.Keys) == 0 {
			result.addError(ValidationError{
				Type:       "index_without_keys",
				Collection: coll.Name,
				Index:      idx.Name,
				Message:    fmt.Sprintf("Index in collection '%s' declares no keys", coll.Name),
			})
			continue
		}

		if err := validateIndexName(name); err != nil {
			result.addError(ValidationError{Type: "index_name", Collection: coll.Name, Index: name, Message: err.Error()})
		}

		if names[name] {
			result.addError(ValidationError{
				Type:       "duplicate_index",
				Collection: coll.Name,
				Index:      name,
				Message:    fmt.Sprintf("Duplicate index name '%s' in collection '%s'", name, coll.Name),
			})
			continue
		}
		names[name] = true

		sig := idx.Signature()
		if other, ok := signatures[sig]; ok {
			result.addError(ValidationError{
				Type:       "duplicate_index_keys",
				Collection: coll.Name,
				Index:      name,
				Message:    fmt.Sprintf("Index '%s' has the same keys as '%s' in collection '%s'", name, other, coll.Name),
			})
			continue
		}
		signatures[sig] = name

		fields := map[string]bool{}
		for _, k := range idx.Keys {
			if err := validateFieldName(k.Field); err != nil {
				result.addError(ValidationError{Type: "field_name", Collection: coll.Name, Index: name, Field: k.Field, Message: err.Error()})
			}
			if fields[k.Field] {
				result.addError(ValidationError{
					Type:       "duplicate_key_field",
					Collection: coll.Name,
					Index:      name,
					Field:      k.Field,
					Message:    fmt.Sprintf("Index '%s' lists field '%s' twice", name, k.Field),
				})
			}
			fields[k.Field] = true
		}

		if idx.IsText() {
			textIndexes++
			if idx.Unique {
				result.addError(ValidationError{
					Type:       "unique_text_index",
					Collection: coll.Name,
					Index:      name,
					Message:    fmt.Sprintf("Text index '%s' cannot be unique", name),
				})
			}
		}
	}

	if textIndexes > 1 {
		result.addError(ValidationError{
			Type:       "multiple_text_indexes",
			Collection: coll.Name,
			Message:    fmt.Sprintf("Collection '%s' declares %d text indexes, MongoDB allows one", coll.Name, textIndexes),
		})
	}
}

func (v *SchemaValidator) validateAdmin(def *schema.Definition, collections map[string]bool, result *ValidationResult) {
	admin := def.Admin
	if err := validateCollectionName(admin.Collection); err != nil {
		result.addError(ValidationError{Type: "admin_collection", Collection: admin.Collection, Message: err.Error()})
	} else if !collections[admin.Collection] {
		result.addWarning(ValidationError{
			Type:       "admin_collection_undeclared",
			Collection: admin.Collection,
			Message:    fmt.Sprintf("Admin collection '%s' is not declared; it will be created implicitly on insert", admin.Collection),
		})
	}

	if strings.TrimSpace(admin.Name) == "" {
		result.addError(ValidationError{Type: "admin_name", Message: "Admin name cannot be empty"})
	}

	if _, err := schema.ParseAdminPolicy(string(admin.Policy)); err != nil {
		result.addError(ValidationError{Type: "admin_policy", Message: err.Error()})
	}
}

// validateDatabaseName follows the mongod naming restrictions for databases.
func validateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("database name '%s' is too long (max 63 characters)", name)
	}
	if strings.ContainsAny(name, "/\\. \"$*<>:|?\x00") {
		return fmt.Errorf("database name '%s' contains an invalid character", name)
	}
	return nil
}

func validateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if strings.HasPrefix(name, "system.") {
		return fmt.Errorf("collection name '%s' uses the reserved 'system.' prefix", name)
	}
	if strings.ContainsAny(name, "$\x00") {
		return fmt.Errorf("collection name '%s' contains an invalid character", name)
	}
	if len(name) > 255 {
		return fmt.Errorf("collection name '%s' is too long (max 255 bytes)", name)
	}
	return nil
}

func validateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("index name cannot be empty")
	}
	if name == "_id_" {
		return fmt.Errorf("index name '_id_' is reserved")
	}
	if strings.ContainsRune(name, '\x00') {
		return fmt.Errorf("index name '%s' contains a NUL byte", name)
	}
	return nil
}

func validateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if strings.HasPrefix(name, "$") {
		return fmt.Errorf("field name '%s' cannot start with '$'", name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return fmt.Errorf("field path '%s' has an empty segment", name)
	}
	return nil
}
