// Package renderstate resolves render-state declarations into typed
// values and projects them onto gputypes pipeline descriptors.
//
// A state key is Category.Property[index]. Values are either constants,
// decoded from literals at compile time, or variables naming a material
// property bound later. A key lives in at most one of the two maps.
package renderstate

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// MaxRenderTargets is the number of indexed blend targets.
const MaxRenderTargets = 8

// Category names.
const (
	Blend   = "BlendState"
	Depth   = "DepthState"
	Stencil = "StencilState"
	Raster  = "RasterState"
)

// ValueKind is the type a state key accepts.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindColor
	KindBlendFactor
	KindBlendOperation
	KindCompareFunction
	KindStencilOperation
	KindCullMode
	KindColorWriteMask
	KindRenderQueueType
)

var kindNames = [...]string{
	KindBool:             "bool",
	KindInt:              "int",
	KindFloat:            "float",
	KindColor:            "Color",
	KindBlendFactor:      "BlendFactor",
	KindBlendOperation:   "BlendOperation",
	KindCompareFunction:  "CompareFunction",
	KindStencilOperation: "StencilOperation",
	KindCullMode:         "CullMode",
	KindColorWriteMask:   "ColorWriteMask",
	KindRenderQueueType:  "RenderQueueType",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// property describes one registered Category.Property.
type property struct {
	kind    ValueKind
	indexed bool
}

var registry = map[string]map[string]property{
	Blend: {
		"Enabled":                     {KindBool, true},
		"ColorBlendOperation":         {KindBlendOperation, true},
		"AlphaBlendOperation":         {KindBlendOperation, true},
		"SourceColorBlendFactor":      {KindBlendFactor, true},
		"DestinationColorBlendFactor": {KindBlendFactor, true},
		"SourceAlphaBlendFactor":      {KindBlendFactor, true},
		"DestinationAlphaBlendFactor": {KindBlendFactor, true},
		"ColorWriteMask":              {KindColorWriteMask, true},
		"BlendColor":                  {KindColor, false},
		"AlphaToCoverage":             {KindBool, false},
	},
	Depth: {
		"Enabled":         {KindBool, false},
		"WriteEnabled":    {KindBool, false},
		"CompareFunction": {KindCompareFunction, false},
	},
	Stencil: {
		"Enabled":              {KindBool, false},
		"ReferenceValue":       {KindInt, false},
		"Mask":                 {KindInt, false},
		"WriteMask":            {KindInt, false},
		"CompareFunctionFront": {KindCompareFunction, false},
		"CompareFunctionBack":  {KindCompareFunction, false},
		"PassOperationFront":   {KindStencilOperation, false},
		"PassOperationBack":    {KindStencilOperation, false},
		"FailOperationFront":   {KindStencilOperation, false},
		"FailOperationBack":    {KindStencilOperation, false},
		"ZFailOperationFront":  {KindStencilOperation, false},
		"ZFailOperationBack":   {KindStencilOperation, false},
	},
	Raster: {
		"CullMode":             {KindCullMode, false},
		"DepthBias":            {KindFloat, false},
		"SlopeScaledDepthBias": {KindFloat, false},
	},
}

// RenderQueueKey is the pass-level render queue assignment.
var RenderQueueKey = Key{Property: "RenderQueueType", Index: -1}

// Key identifies one render-state slot. Index is -1 for properties that
// are not per render target.
type Key struct {
	Category string
	Property string
	Index    int
}

// K builds a key without validating it.
func K(category, property string, index int) Key {
	return Key{Category: category, Property: property, Index: index}
}

func (k Key) String() string {
	var sb strings.Builder
	if k.Category != "" {
		sb.WriteString(k.Category)
		sb.WriteByte('.')
	}
	sb.WriteString(k.Property)
	if k.Index >= 0 {
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(k.Index))
		sb.WriteByte(']')
	}
	return sb.String()
}

// MarshalText lets keys be JSON object names.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Compare orders keys by category, then property, then index.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Category, o.Category); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Property, o.Property); c != 0 {
		return c
	}
	return cmp.Compare(k.Index, o.Index)
}

// Kind returns the value kind k accepts.
func (k Key) Kind() ValueKind {
	if k == RenderQueueKey {
		return KindRenderQueueType
	}
	return registry[k.Category][k.Property].kind
}

// Lookup validates a declaration target and returns its key. An indexed
// property written without an index addresses target 0.
func Lookup(category, prop string, index int, hasIndex bool) (Key, error) {
	if category == "" && prop == RenderQueueKey.Property && !hasIndex {
		return RenderQueueKey, nil
	}
	props, ok := registry[category]
	if !ok {
		return Key{}, fmt.Errorf("unknown render-state category %q", category)
	}
	p, ok := props[prop]
	if !ok {
		return Key{}, fmt.Errorf("unknown property %s.%s", category, prop)
	}
	if !p.indexed {
		if hasIndex {
			return Key{}, fmt.Errorf("%s.%s does not take an index", category, prop)
		}
		return Key{Category: category, Property: prop, Index: -1}, nil
	}
	if index < 0 || index >= MaxRenderTargets {
		return Key{}, fmt.Errorf("index %d of %s.%s is out of range [0, %d)", index, category, prop, MaxRenderTargets)
	}
	return Key{Category: category, Property: prop, Index: index}, nil
}
