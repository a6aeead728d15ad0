package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource []byte

//go:embed default_menu.cue
var defaultMenuSource []byte

// LoadError is a menu definition error with its source position.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads a CUE menu definition file.
//
// The file must define a top-level list:
//
//	menu: [
//		{id: "margherita", name: "Margherita", price: 12.50},
//	]
//
// Items are checked against a closed schema: unknown fields, negative prices
// and empty ids or names are rejected.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu %s: %w", path, err)
	}
	return Parse(path, src)
}

// Parse compiles and validates CUE menu source. filename is used in error
// positions only.
func Parse(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile menu schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if !data.LookupPath(cue.ParsePath("menu")).Exists() {
		return nil, &LoadError{Message: "menu: field is required", Pos: data.Pos()}
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	menu := v.LookupPath(cue.ParsePath("menu"))

	out, err := menu.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return DecodeMenu(bytes.NewReader(out))
}

// DefaultMenu returns the built-in menu.
func DefaultMenu() *Catalog {
	c, err := Parse("default_menu.cue", defaultMenuSource)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in menu: %v", err))
	}
	return c
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if pos := errors.Positions(first); len(pos) > 0 {
		return &LoadError{Message: first.Error(), Pos: pos[0]}
	}
	return &LoadError{Message: first.Error()}
}
