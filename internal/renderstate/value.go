package renderstate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/HugoDaniel/shaderlab/internal/ast"
)

// RenderQueueType orders passes for drawing.
type RenderQueueType int

const (
	Opaque      RenderQueueType = 1000
	AlphaTest   RenderQueueType = 2450
	Transparent RenderQueueType = 3000
)

func (q RenderQueueType) String() string {
	switch q {
	case Opaque:
		return "Opaque"
	case AlphaTest:
		return "AlphaTest"
	case Transparent:
		return "Transparent"
	}
	return fmt.Sprintf("RenderQueueType(%d)", int(q))
}

// Value is a decoded constant. Enum kinds keep their gputypes value in Enum.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Color  gputypes.Color
	Enum   uint32
}

// Bool, Int, Float and the enum constructors build values directly.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func Int(n int) Value { return Value{Kind: KindInt, Number: float64(n)} }

func Float(f float64) Value { return Value{Kind: KindFloat, Number: f} }

func ColorValue(c gputypes.Color) Value { return Value{Kind: KindColor, Color: c} }

func BlendFactor(f gputypes.BlendFactor) Value {
	return Value{Kind: KindBlendFactor, Enum: uint32(f)}
}

func BlendOperation(op gputypes.BlendOperation) Value {
	return Value{Kind: KindBlendOperation, Enum: uint32(op)}
}

func CompareFunction(f gputypes.CompareFunction) Value {
	return Value{Kind: KindCompareFunction, Enum: uint32(f)}
}

func StencilOperation(op gputypes.StencilOperation) Value {
	return Value{Kind: KindStencilOperation, Enum: uint32(op)}
}

func CullMode(m gputypes.CullMode) Value {
	return Value{Kind: KindCullMode, Enum: uint32(m)}
}

func ColorWriteMask(m gputypes.ColorWriteMask) Value {
	return Value{Kind: KindColorWriteMask, Enum: uint32(m)}
}

func RenderQueue(q RenderQueueType) Value {
	return Value{Kind: KindRenderQueueType, Number: float64(q)}
}

// Int returns the value as an integer.
func (v Value) Int() int { return int(v.Number) }

func (v Value) BlendFactor() gputypes.BlendFactor { return gputypes.BlendFactor(v.Enum) }

func (v Value) BlendOperation() gputypes.BlendOperation { return gputypes.BlendOperation(v.Enum) }

func (v Value) CompareFunction() gputypes.CompareFunction { return gputypes.CompareFunction(v.Enum) }

func (v Value) StencilOperation() gputypes.StencilOperation {
	return gputypes.StencilOperation(v.Enum)
}

func (v Value) CullMode() gputypes.CullMode { return gputypes.CullMode(v.Enum) }

func (v Value) ColorWriteMask() gputypes.ColorWriteMask { return gputypes.ColorWriteMask(v.Enum) }

func (v Value) RenderQueue() RenderQueueType { return RenderQueueType(v.Number) }

// String renders the value by name.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprint(v.Bool)
	case KindInt:
		return fmt.Sprint(v.Int())
	case KindFloat:
		return fmt.Sprint(v.Number)
	case KindColor:
		return fmt.Sprintf("Color(%g, %g, %g, %g)", v.Color.R, v.Color.G, v.Color.B, v.Color.A)
	case KindBlendFactor:
		return v.BlendFactor().String()
	case KindBlendOperation:
		return v.BlendOperation().String()
	case KindCompareFunction:
		return v.CompareFunction().String()
	case KindStencilOperation:
		return v.StencilOperation().String()
	case KindCullMode:
		return v.CullMode().String()
	case KindColorWriteMask:
		return colorWriteMaskString(v.ColorWriteMask())
	case KindRenderQueueType:
		return v.RenderQueue().String()
	}
	return "?"
}

// MarshalJSON writes booleans and numbers as JSON scalars, colors as
// [r, g, b, a] and enums by name.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindBool:
		return json.Marshal(v.Bool)
	case KindInt, KindFloat:
		return json.Marshal(v.Number)
	case KindColor:
		return json.Marshal([4]float64{v.Color.R, v.Color.G, v.Color.B, v.Color.A})
	}
	return json.Marshal(v.String())
}

func colorWriteMaskString(m gputypes.ColorWriteMask) string {
	switch m {
	case gputypes.ColorWriteMaskNone:
		return "None"
	case gputypes.ColorWriteMaskAll:
		return "All"
	}
	var parts []string
	for _, c := range []struct {
		bit  gputypes.ColorWriteMask
		name string
	}{
		{gputypes.ColorWriteMaskRed, "Red"},
		{gputypes.ColorWriteMaskGreen, "Green"},
		{gputypes.ColorWriteMaskBlue, "Blue"},
		{gputypes.ColorWriteMaskAlpha, "Alpha"},
	} {
		if m&c.bit != 0 {
			parts = append(parts, c.name)
		}
	}
	return strings.Join(parts, "|")
}

// ----------------------------------------------------------------------------
// Enum Spellings
// ----------------------------------------------------------------------------

// Members are accepted in both the ShaderLab spelling and the gputypes one.

var blendFactors = map[string]gputypes.BlendFactor{
	"Zero":                     gputypes.BlendFactorZero,
	"One":                      gputypes.BlendFactorOne,
	"SourceColor":              gputypes.BlendFactorSrc,
	"Src":                      gputypes.BlendFactorSrc,
	"OneMinusSourceColor":      gputypes.BlendFactorOneMinusSrc,
	"OneMinusSrc":              gputypes.BlendFactorOneMinusSrc,
	"SourceAlpha":              gputypes.BlendFactorSrcAlpha,
	"SrcAlpha":                 gputypes.BlendFactorSrcAlpha,
	"OneMinusSourceAlpha":      gputypes.BlendFactorOneMinusSrcAlpha,
	"OneMinusSrcAlpha":         gputypes.BlendFactorOneMinusSrcAlpha,
	"DestinationColor":         gputypes.BlendFactorDst,
	"Dst":                      gputypes.BlendFactorDst,
	"OneMinusDestinationColor": gputypes.BlendFactorOneMinusDst,
	"OneMinusDst":              gputypes.BlendFactorOneMinusDst,
	"DestinationAlpha":         gputypes.BlendFactorDstAlpha,
	"DstAlpha":                 gputypes.BlendFactorDstAlpha,
	"OneMinusDestinationAlpha": gputypes.BlendFactorOneMinusDstAlpha,
	"OneMinusDstAlpha":         gputypes.BlendFactorOneMinusDstAlpha,
	"SourceAlphaSaturate":      gputypes.BlendFactorSrcAlphaSaturated,
	"SrcAlphaSaturated":        gputypes.BlendFactorSrcAlphaSaturated,
	"BlendColor":               gputypes.BlendFactorConstant,
	"Constant":                 gputypes.BlendFactorConstant,
	"OneMinusBlendColor":       gputypes.BlendFactorOneMinusConstant,
	"OneMinusConstant":         gputypes.BlendFactorOneMinusConstant,
}

var blendOperations = map[string]gputypes.BlendOperation{
	"Add":             gputypes.BlendOperationAdd,
	"Subtract":        gputypes.BlendOperationSubtract,
	"ReverseSubtract": gputypes.BlendOperationReverseSubtract,
	"Min":             gputypes.BlendOperationMin,
	"Max":             gputypes.BlendOperationMax,
}

var compareFunctions = map[string]gputypes.CompareFunction{
	"Never":        gputypes.CompareFunctionNever,
	"Less":         gputypes.CompareFunctionLess,
	"Equal":        gputypes.CompareFunctionEqual,
	"LessEqual":    gputypes.CompareFunctionLessEqual,
	"Greater":      gputypes.CompareFunctionGreater,
	"NotEqual":     gputypes.CompareFunctionNotEqual,
	"GreaterEqual": gputypes.CompareFunctionGreaterEqual,
	"Always":       gputypes.CompareFunctionAlways,
}

var stencilOperations = map[string]gputypes.StencilOperation{
	"Keep":              gputypes.StencilOperationKeep,
	"Zero":              gputypes.StencilOperationZero,
	"Replace":           gputypes.StencilOperationReplace,
	"Invert":            gputypes.StencilOperationInvert,
	"IncrementSaturate": gputypes.StencilOperationIncrementClamp,
	"IncrementClamp":    gputypes.StencilOperationIncrementClamp,
	"DecrementSaturate": gputypes.StencilOperationDecrementClamp,
	"DecrementClamp":    gputypes.StencilOperationDecrementClamp,
	"IncrementWrap":     gputypes.StencilOperationIncrementWrap,
	"DecrementWrap":     gputypes.StencilOperationDecrementWrap,
}

var cullModes = map[string]gputypes.CullMode{
	"Off":   gputypes.CullModeNone,
	"None":  gputypes.CullModeNone,
	"Front": gputypes.CullModeFront,
	"Back":  gputypes.CullModeBack,
}

var colorWriteMasks = map[string]gputypes.ColorWriteMask{
	"None":  gputypes.ColorWriteMaskNone,
	"Red":   gputypes.ColorWriteMaskRed,
	"Green": gputypes.ColorWriteMaskGreen,
	"Blue":  gputypes.ColorWriteMaskBlue,
	"Alpha": gputypes.ColorWriteMaskAlpha,
	"All":   gputypes.ColorWriteMaskAll,
}

var renderQueues = map[string]RenderQueueType{
	"Opaque":      Opaque,
	"AlphaTest":   AlphaTest,
	"Transparent": Transparent,
}

// member looks up an enum member of kind k.
func member(k ValueKind, name string) (Value, bool) {
	v := Value{Kind: k}
	var ok bool
	switch k {
	case KindBlendFactor:
		var f gputypes.BlendFactor
		f, ok = blendFactors[name]
		v.Enum = uint32(f)
	case KindBlendOperation:
		var op gputypes.BlendOperation
		op, ok = blendOperations[name]
		v.Enum = uint32(op)
	case KindCompareFunction:
		var f gputypes.CompareFunction
		f, ok = compareFunctions[name]
		v.Enum = uint32(f)
	case KindStencilOperation:
		var op gputypes.StencilOperation
		op, ok = stencilOperations[name]
		v.Enum = uint32(op)
	case KindCullMode:
		var m gputypes.CullMode
		m, ok = cullModes[name]
		v.Enum = uint32(m)
	case KindColorWriteMask:
		var m gputypes.ColorWriteMask
		m, ok = colorWriteMasks[name]
		v.Enum = uint32(m)
	case KindRenderQueueType:
		var q RenderQueueType
		q, ok = renderQueues[name]
		v.Number = float64(q)
	}
	return v, ok
}

// isEnum reports whether k is decoded from enum members.
func (k ValueKind) isEnum() bool {
	return k >= KindBlendFactor
}

// ----------------------------------------------------------------------------
// Decoding
// ----------------------------------------------------------------------------

// Decode converts a parsed value for a slot of kind k. It returns the
// property name when the value is a reference to a material property.
func Decode(k ValueKind, in ast.Value) (val Value, variable string, err error) {
	switch in.Kind {
	case ast.ValueIdent:
		if k.isEnum() {
			if v, ok := member(k, in.Member); ok {
				return v, "", nil
			}
		}
		return Value{}, in.Member, nil

	case ast.ValueEnum:
		if !k.isEnum() || in.EnumType != k.String() {
			return Value{}, "", fmt.Errorf("expected %s, found %s", k, in.Text)
		}
		if v, ok := member(k, in.Member); ok {
			return v, "", nil
		}
		return Value{}, "", fmt.Errorf("%s has no member %q", k, in.Member)

	case ast.ValueString:
		if k.isEnum() {
			if v, ok := member(k, in.Member); ok {
				return v, "", nil
			}
		}

	case ast.ValueBool:
		if k == KindBool {
			return Bool(in.Bool), "", nil
		}

	case ast.ValueInt, ast.ValueFloat:
		switch k {
		case KindFloat:
			return Float(in.Number), "", nil
		case KindInt:
			if in.Kind == ast.ValueInt {
				return Int(int(in.Number)), "", nil
			}
		case KindColorWriteMask:
			if in.Kind == ast.ValueInt && in.Number >= 0 && in.Number <= float64(gputypes.ColorWriteMaskAll) {
				return ColorWriteMask(gputypes.ColorWriteMask(in.Number)), "", nil
			}
		case KindRenderQueueType:
			if in.Kind == ast.ValueInt {
				return RenderQueue(RenderQueueType(in.Number)), "", nil
			}
		}

	case ast.ValueColor:
		if k == KindColor {
			return ColorValue(gputypes.NewColor(in.Color[0], in.Color[1], in.Color[2], in.Color[3])), "", nil
		}
	}
	return Value{}, "", fmt.Errorf("expected %s, found %s %s", k, in.Kind, in.Text)
}
