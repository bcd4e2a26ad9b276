package loader

import (
	_ "embed"

	"github.com/ridoystarlord/mongoprov/schema"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the definition compiled into the binary. It is used when no
// schema file is configured.
func Builtin() (*schema.Definition, error) {
	return ParseDefinition(builtinYAML)
}

// BuiltinYAML is the raw document, written out by `mongoprov init`.
func BuiltinYAML() []byte {
	out := make([]byte, len(builtinYAML))
	copy(out, builtinYAML)
	return out
}

// Load reads filename, or the built-in definition when filename is empty.
func Load(filename string) (*schema.Definition, error) {
	if filename == "" {
		return Builtin()
	}
	return LoadDefinitionFromYAML(filename)
}
