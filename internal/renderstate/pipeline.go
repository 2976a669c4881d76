package renderstate

import "github.com/gogpu/gputypes"

// Pipeline is the gputypes projection of the constant render state.
// Keys bound to material properties keep their defaults here; the caller
// patches them when the material is known.
type Pipeline struct {
	// Targets carries blending and write masks; Format is left for the
	// caller. Blend is nil for targets with blending disabled.
	Targets         [MaxRenderTargets]gputypes.ColorTargetState
	BlendColor      gputypes.Color
	AlphaToCoverage bool

	// DepthStencil is nil when both depth and stencil testing are off.
	DepthStencil     *gputypes.DepthStencilState
	StencilReference uint32

	Primitive   gputypes.PrimitiveState
	RenderQueue RenderQueueType
}

// Pipeline builds ready-to-bind descriptors from the constant map.
// depthFormat is used when a depth-stencil state is produced.
func (r RenderStates) Pipeline(depthFormat gputypes.TextureFormat) Pipeline {
	c := constants(r.ConstantMap)
	var p Pipeline

	for i := range p.Targets {
		t := &p.Targets[i]
		t.WriteMask = c.mask(K(Blend, "ColorWriteMask", i), gputypes.ColorWriteMaskAll)
		if !c.boolean(K(Blend, "Enabled", i), false) {
			continue
		}
		t.Blend = &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: c.factor(K(Blend, "SourceColorBlendFactor", i), gputypes.BlendFactorOne),
				DstFactor: c.factor(K(Blend, "DestinationColorBlendFactor", i), gputypes.BlendFactorZero),
				Operation: c.operation(K(Blend, "ColorBlendOperation", i), gputypes.BlendOperationAdd),
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: c.factor(K(Blend, "SourceAlphaBlendFactor", i), gputypes.BlendFactorOne),
				DstFactor: c.factor(K(Blend, "DestinationAlphaBlendFactor", i), gputypes.BlendFactorZero),
				Operation: c.operation(K(Blend, "AlphaBlendOperation", i), gputypes.BlendOperationAdd),
			},
		}
	}
	if v, ok := c[K(Blend, "BlendColor", -1)]; ok {
		p.BlendColor = v.Color
	}
	p.AlphaToCoverage = c.boolean(K(Blend, "AlphaToCoverage", -1), false)

	depth := c.boolean(K(Depth, "Enabled", -1), true)
	stencil := c.boolean(K(Stencil, "Enabled", -1), false)
	if depth || stencil {
		ds := gputypes.DefaultDepthStencilState(depthFormat)
		ds.DepthWriteEnabled = depth && c.boolean(K(Depth, "WriteEnabled", -1), true)
		ds.DepthCompare = gputypes.CompareFunctionAlways
		if depth {
			ds.DepthCompare = c.compare(K(Depth, "CompareFunction", -1), gputypes.CompareFunctionLess)
		}
		if stencil {
			ds.StencilFront = c.face("Front")
			ds.StencilBack = c.face("Back")
			ds.StencilReadMask = uint32(c.integer(K(Stencil, "Mask", -1), 0xFF))
			ds.StencilWriteMask = uint32(c.integer(K(Stencil, "WriteMask", -1), 0xFF))
			p.StencilReference = uint32(c.integer(K(Stencil, "ReferenceValue", -1), 0))
		}
		ds.DepthBias = int32(c.number(K(Raster, "DepthBias", -1), 0))
		ds.DepthBiasSlopeScale = float32(c.number(K(Raster, "SlopeScaledDepthBias", -1), 0))
		p.DepthStencil = &ds
	}

	p.Primitive = gputypes.PrimitiveState{
		Topology:  gputypes.PrimitiveTopologyTriangleList,
		FrontFace: gputypes.FrontFaceCCW,
		CullMode:  gputypes.CullModeBack,
	}
	if v, ok := c[K(Raster, "CullMode", -1)]; ok {
		p.Primitive.CullMode = v.CullMode()
	}

	p.RenderQueue = Opaque
	if v, ok := c[RenderQueueKey]; ok {
		p.RenderQueue = v.RenderQueue()
	}
	return p
}

// constants reads typed values with defaults.
type constants map[Key]Value

func (c constants) boolean(k Key, def bool) bool {
	if v, ok := c[k]; ok {
		return v.Bool
	}
	return def
}

func (c constants) integer(k Key, def int) int {
	if v, ok := c[k]; ok {
		return v.Int()
	}
	return def
}

func (c constants) number(k Key, def float64) float64 {
	if v, ok := c[k]; ok {
		return v.Number
	}
	return def
}

func (c constants) factor(k Key, def gputypes.BlendFactor) gputypes.BlendFactor {
	if v, ok := c[k]; ok {
		return v.BlendFactor()
	}
	return def
}

func (c constants) operation(k Key, def gputypes.BlendOperation) gputypes.BlendOperation {
	if v, ok := c[k]; ok {
		return v.BlendOperation()
	}
	return def
}

func (c constants) compare(k Key, def gputypes.CompareFunction) gputypes.CompareFunction {
	if v, ok := c[k]; ok {
		return v.CompareFunction()
	}
	return def
}

func (c constants) stencilOp(k Key) gputypes.StencilOperation {
	if v, ok := c[k]; ok {
		return v.StencilOperation()
	}
	return gputypes.StencilOperationKeep
}

func (c constants) mask(k Key, def gputypes.ColorWriteMask) gputypes.ColorWriteMask {
	if v, ok := c[k]; ok {
		return v.ColorWriteMask()
	}
	return def
}

// face reads the stencil state of "Front" or "Back".
func (c constants) face(side string) gputypes.StencilFaceState {
	return gputypes.StencilFaceState{
		Compare:     c.compare(K(Stencil, "CompareFunction"+side, -1), gputypes.CompareFunctionAlways),
		FailOp:      c.stencilOp(K(Stencil, "FailOperation"+side, -1)),
		DepthFailOp: c.stencilOp(K(Stencil, "ZFailOperation"+side, -1)),
		PassOp:      c.stencilOp(K(Stencil, "PassOperation"+side, -1)),
	}
}
