package rules

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// globExt implements jsonschema.SchemaExt for the custom "glob" keyword: a
// string-level match against a gitignore/picomatch-style glob pattern.
type globExt struct {
	pattern string
	g       glob.Glob
}

func (g globExt) Validate(ctx *jsonschema.ValidatorContext, v any) {
	s, ok := v.(string)
	if !ok {
		return
	}
	if !g.g.Match(s) {
		ctx.Error("glob", "%q does not match glob %q", s, g.pattern)
	}
}

// compileGlob implements the Vocabulary's Compile func, turning a schema's
// "glob" value into a compiled globExt validator.
func compileGlob(ctx *jsonschema.CompilerContext, m map[string]any) (jsonschema.SchemaExt, error) {
	raw, ok := m["glob"]
	if !ok {
		return nil, nil
	}
	pattern, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("glob: value must be a string")
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("glob: invalid pattern %q: %w", pattern, err)
	}
	return globExt{pattern: pattern, g: g}, nil
}

// newCompiler returns a jsonschema compiler with the custom "glob" keyword
// registered, matching a gitignore/picomatch glob against string instances.
// The vocabulary carries no meta-schema of its own: "glob" is a leaf
// keyword with a single string argument, so there's nothing beyond the
// ordinary JSON Schema "type" check worth enforcing on the keyword's shape.
func newCompiler() (*jsonschema.Compiler, error) {
	c := jsonschema.NewCompiler()
	c.RegisterVocabulary(&jsonschema.Vocabulary{
		URL:     "https://jeeveswatcher/schemas/glob-vocab.json",
		Compile: compileGlob,
	})
	return c, nil
}
