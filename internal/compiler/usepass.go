package compiler

import (
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
	"github.com/HugoDaniel/shaderlab/internal/logger"
)

// resolveUsePasses points every UsePass of the unit at the compiled pass
// it names. References are resolved after every pass is built, so forward
// references work. A reference to another UsePass is followed to its end.
//
// Names are "SubShader/Pass" within the unit, or "Shader/SubShader/Pass"
// for a shader compiled earlier in the session.
func (u *unit) resolveUsePasses() error {
	for _, ref := range u.refs {
		if _, err := u.resolve(ref.info, make(map[*ShaderPassInfo]bool)); err != nil {
			return u.errorAt(diagnostic.UnresolvedPassReferenceError, ref.pass.Range, "", "%s", err.Message)
		}
		logger.Get().Debug("pass reference resolved", "ref", ref.info.Name, "target", ref.info.Target.Name)
	}
	return nil
}

// resolve returns the compiled pass p stands for. The returned error only
// carries a message; the caller positions it.
func (u *unit) resolve(p *ShaderPassInfo, visiting map[*ShaderPassInfo]bool) (*ShaderPassInfo, *diagnostic.Error) {
	if !p.IsUsePass {
		return p, nil
	}
	if p.Target != nil {
		return p.Target, nil
	}
	if visiting[p] {
		return nil, diagnostic.New(diagnostic.UnresolvedPassReferenceError, "UsePass %q is part of a reference cycle", p.Name)
	}
	visiting[p] = true

	next, ok := u.lookup(p.Name)
	if !ok {
		return nil, diagnostic.New(diagnostic.UnresolvedPassReferenceError, "pass %q is not defined", p.Name)
	}
	target, err := u.resolve(next, visiting)
	if err != nil {
		return nil, err
	}
	p.Target = target
	return target, nil
}

// lookup finds the pass a qualified name refers to.
func (u *unit) lookup(name string) (*ShaderPassInfo, bool) {
	parts := strings.Split(name, "/")
	switch len(parts) {
	case 2:
		return u.info.Pass(name)
	case 3:
		qualified := parts[1] + "/" + parts[2]
		if parts[0] == u.info.Name {
			return u.info.Pass(qualified)
		}
		prev, ok := u.session.Shader(parts[0])
		if !ok {
			return nil, false
		}
		return prev.Pass(qualified)
	}
	return nil, false
}
