// Package rules implements the inference rule engine: JSON-Schema-based
// matching (with a custom "glob" keyword), "${dotted.path}" template
// resolution, and an optional small transform expression tree.
package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Rule is the user-declared form of an inference rule: a match schema, a
// set-of-assignments mapping, and an optional transform.
type Rule struct {
	Name          string         `json:"name" yaml:"name"`
	Match         map[string]any `json:"match" yaml:"match"`
	Set           map[string]any `json:"set" yaml:"set"`
	Transform     *TransformDef  `json:"transform,omitempty" yaml:"transform,omitempty"`
	TransformName string         `json:"transformRef,omitempty" yaml:"transformRef,omitempty"`
}

// CompiledRule pairs the original rule with its compiled matcher.
type CompiledRule struct {
	Rule    Rule
	schema  *jsonschema.Schema
}

// Matches reports whether attrs satisfies the rule's match schema.
func (c CompiledRule) Matches(attrs Attributes) bool {
	return c.schema.Validate(attrs.ToMap()) == nil
}

// Table is a hot-swappable, atomically published set of compiled rules plus
// named transforms, per the "immutable vector inside an atomic handle"
// design note.
type Table struct {
	rules   atomic.Pointer[[]CompiledRule]
	named   atomic.Pointer[map[string]TransformDef]
}

// NewTable builds an empty table; call Update to populate it.
func NewTable() *Table {
	t := &Table{}
	empty := []CompiledRule{}
	t.rules.Store(&empty)
	emptyNamed := map[string]TransformDef{}
	t.named.Store(&emptyNamed)
	return t
}

// Compile compiles a set of raw rules and named transforms into a snapshot
// ready for Table.Update. Compilation errors are returned to the caller,
// who should surface them as configuration errors (fatal at load time).
func Compile(raw []Rule, named map[string]TransformDef) ([]CompiledRule, map[string]TransformDef, error) {
	compiler, err := newCompiler()
	if err != nil {
		return nil, nil, err
	}
	out := make([]CompiledRule, 0, len(raw))
	for i, r := range raw {
		resourceID := fmt.Sprintf("rule://%d-%s.json", i, sanitizeName(r.Name))
		if err := compiler.AddResource(resourceID, toAny(r.Match)); err != nil {
			return nil, nil, fmt.Errorf("rule %q: add schema resource: %w", r.Name, err)
		}
		sch, err := compiler.Compile(resourceID)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %q: compile schema: %w", r.Name, err)
		}
		out = append(out, CompiledRule{Rule: r, schema: sch})
	}
	namedCopy := make(map[string]TransformDef, len(named))
	for k, v := range named {
		namedCopy[k] = v
	}
	return out, namedCopy, nil
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeName(name string) string {
	if name == "" {
		return "rule"
	}
	return nonAlnum.ReplaceAllString(name, "_")
}

func toAny(m map[string]any) any {
	b, _ := json.Marshal(m)
	var v any
	_ = json.Unmarshal(b, &v)
	return v
}

// Update atomically publishes a new rule table snapshot. In-flight
// evaluations keep their own snapshot taken at call entry.
func (t *Table) Update(compiled []CompiledRule, named map[string]TransformDef) {
	rulesCopy := append([]CompiledRule{}, compiled...)
	t.rules.Store(&rulesCopy)
	namedCopy := make(map[string]TransformDef, len(named))
	for k, v := range named {
		namedCopy[k] = v
	}
	t.named.Store(&namedCopy)
}

// Evaluate runs every matching rule in declaration order against attrs and
// returns the merged metadata mapping produced by their set/transform
// outputs.
func (t *Table) Evaluate(attrs Attributes) map[string]any {
	rulesSnapshot := *t.rules.Load()
	namedSnapshot := *t.named.Load()

	merged := map[string]any{}
	for _, cr := range rulesSnapshot {
		if !cr.Matches(attrs) {
			continue
		}
		setOut := resolveTemplates(cr.Rule.Set, attrs)
		for k, v := range setOut {
			merged[k] = v
		}

		def, ok := resolveTransform(cr.Rule, namedSnapshot)
		if !ok {
			if cr.Rule.TransformName != "" {
				log.Warn().Str("rule", cr.Rule.Name).Str("transform", cr.Rule.TransformName).Msg("named transform not found, skipping")
			}
			continue
		}
		out, err := def.Run(attrs)
		if err != nil {
			log.Warn().Err(err).Str("rule", cr.Rule.Name).Msg("transform failed, skipping")
			continue
		}
		for k, v := range out {
			merged[k] = v
		}
	}
	return merged
}

func resolveTransform(r Rule, named map[string]TransformDef) (TransformDef, bool) {
	if r.Transform != nil {
		return *r.Transform, true
	}
	if r.TransformName != "" {
		def, ok := named[r.TransformName]
		return def, ok
	}
	return TransformDef{}, false
}

var templateRe = regexp.MustCompile(`\$\{([a-zA-Z0-9_.]+)\}`)

// resolveTemplates walks a set mapping substituting every "${dotted.path}"
// occurrence in string values with the attribute reached by that path.
func resolveTemplates(set map[string]any, attrs Attributes) map[string]any {
	env := attrs.ToMap()
	out := make(map[string]any, len(set))
	for k, v := range set {
		out[k] = resolveTemplateValue(v, env)
	}
	return out
}

func resolveTemplateValue(v any, env map[string]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return templateRe.ReplaceAllStringFunc(s, func(m string) string {
		path := templateRe.FindStringSubmatch(m)[1]
		resolved := resolvePath(path, env)
		switch r := resolved.(type) {
		case nil:
			return ""
		case string:
			return r
		default:
			b, err := json.Marshal(r)
			if err != nil {
				return ""
			}
			return string(b)
		}
	})
}

