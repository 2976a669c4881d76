package renderstate

import (
	"maps"
	"slices"

	"github.com/HugoDaniel/shaderlab/internal/ast"
	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
)

// RenderStates is the resolved render state of one level or pass.
type RenderStates struct {
	ConstantMap map[Key]Value  `json:"constantMap"`
	VariableMap map[Key]string `json:"variableMap"`
}

// New returns empty render states.
func New() RenderStates {
	return RenderStates{ConstantMap: map[Key]Value{}, VariableMap: map[Key]string{}}
}

func (r *RenderStates) init() {
	if r.ConstantMap == nil {
		r.ConstantMap = map[Key]Value{}
	}
	if r.VariableMap == nil {
		r.VariableMap = map[Key]string{}
	}
}

// SetConstant stores a constant, replacing any variable for k.
func (r *RenderStates) SetConstant(k Key, v Value) {
	r.init()
	delete(r.VariableMap, k)
	r.ConstantMap[k] = v
}

// SetVariable binds k to a material property, replacing any constant.
func (r *RenderStates) SetVariable(k Key, property string) {
	r.init()
	delete(r.ConstantMap, k)
	r.VariableMap[k] = property
}

// Constant returns the constant stored for k.
func (r RenderStates) Constant(k Key) (Value, bool) {
	v, ok := r.ConstantMap[k]
	return v, ok
}

// Len returns the number of keys set.
func (r RenderStates) Len() int {
	return len(r.ConstantMap) + len(r.VariableMap)
}

// Keys returns every key set, sorted.
func (r RenderStates) Keys() []Key {
	keys := slices.Collect(maps.Keys(r.ConstantMap))
	keys = slices.AppendSeq(keys, maps.Keys(r.VariableMap))
	slices.SortFunc(keys, Key.Compare)
	return keys
}

// Clone returns a deep copy.
func (r RenderStates) Clone() RenderStates {
	out := New()
	maps.Copy(out.ConstantMap, r.ConstantMap)
	maps.Copy(out.VariableMap, r.VariableMap)
	return out
}

// Merge applies o on top of r key by key.
func (r *RenderStates) Merge(o RenderStates) {
	for _, k := range o.Keys() {
		if v, ok := o.ConstantMap[k]; ok {
			r.SetConstant(k, v)
		} else {
			r.SetVariable(k, o.VariableMap[k])
		}
	}
}

// Merge combines levels in order; later levels override earlier ones.
func Merge(levels ...RenderStates) RenderStates {
	out := New()
	for _, l := range levels {
		out.Merge(l)
	}
	return out
}

// ----------------------------------------------------------------------------
// Declarations
// ----------------------------------------------------------------------------

// BlockLookup finds a named block of a category visible from the level
// being applied.
type BlockLookup func(category, name string) (*ast.RenderStateBlock, bool)

// Apply resolves decls in order into r. Errors are *diagnostic.Error whose
// Pos.Offset is the offending range start in the preprocessed text.
func (r *RenderStates) Apply(decls []*ast.RenderStateDecl, lookup BlockLookup) error {
	for _, decl := range decls {
		if decl.BlockRef == "" {
			if err := r.set(decl); err != nil {
				return err
			}
			continue
		}

		var block *ast.RenderStateBlock
		ok := false
		if lookup != nil {
			block, ok = lookup(decl.Category, decl.BlockRef)
		}
		if !ok {
			return errorAt(diagnostic.UnknownRenderStateKeyError, decl.Range,
				"unknown %s block %q", decl.Category, decl.BlockRef)
		}
		for _, entry := range block.Entries {
			if err := r.set(entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *RenderStates) set(decl *ast.RenderStateDecl) error {
	key, err := Lookup(decl.Category, decl.Property, decl.Index, decl.HasIndex)
	if err != nil {
		return errorAt(diagnostic.UnknownRenderStateKeyError, decl.Range, "%v", err)
	}
	val, variable, err := Decode(key.Kind(), decl.Value)
	if err != nil {
		return errorAt(diagnostic.RenderStateValueError, decl.Value.Range, "%s: %v", key, err)
	}
	if variable != "" {
		r.SetVariable(key, variable)
	} else {
		r.SetConstant(key, val)
	}
	return nil
}

// CheckBlock validates every entry of a named block without applying it.
func CheckBlock(block *ast.RenderStateBlock) error {
	var scratch RenderStates
	return scratch.Apply(block.Entries, nil)
}

func errorAt(kind diagnostic.Kind, r ast.Range, format string, args ...any) *diagnostic.Error {
	return diagnostic.At(kind, "", diagnostic.Position{Offset: r.Start}, format, args...)
}
