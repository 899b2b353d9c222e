// pre_processor.go implements the WGSL include pre-processor. A line of the form
//
//	// @oxy:include <name>
//
// is replaced by the registered source for <name>. Each name is spliced at most once per shader,
// so includes may include each other without duplicate struct definitions.
package shader

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/postfx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/ssao"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

const includeDirective = "@oxy:include"

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	includes map[string]string
}

// PreProcessor expands include directives in WGSL source.
type PreProcessor interface {
	// Process expands every include directive in source.
	//
	// Parameters:
	//   - source: WGSL source with include directives
	//
	// Returns:
	//   - string: the expanded source
	//   - error: error if a directive names an unknown include
	Process(source string) (string, error)

	// Register adds or replaces an include.
	//
	// Parameters:
	//   - name: the include name used in directives
	//   - source: the WGSL text spliced in its place
	Register(name, source string)

	// Includes returns the registered include names.
	//
	// Returns:
	//   - []string: the names in no particular order
	Includes() []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's GPU struct definitions and the shared
// WGSL snippets registered.
//
// Returns:
//   - PreProcessor: the pre-processor
func NewPreProcessor() PreProcessor {
	pp := &preProcessor{includes: map[string]string{
		"frame":           camera.GPUFrameUniformSource,
		"light":           light.GPULightSource,
		"vertex":          model.GPUVertexSource,
		"material_params": material.GPUParamsSource,
		"ssao_params":     ssao.GPUParamsSource,
		"lighting_params": shading.GPUParamsSource,
		"post_params":     postfx.GPUParamsSource,
		"voxel_grid":      voxel.GPUGridSource,
	}}
	for _, name := range snippetNames() {
		if src, err := snippet(name); err == nil {
			pp.includes[name] = src
		}
	}
	return pp
}

func (p *preProcessor) Register(name, source string) {
	p.includes[name] = source
}

func (p *preProcessor) Includes() []string {
	names := make([]string, 0, len(p.includes))
	for name := range p.includes {
		names = append(names, name)
	}
	return names
}

func (p *preProcessor) Process(source string) (string, error) {
	var sb strings.Builder
	if err := p.expand(&sb, source, map[string]bool{}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (p *preProcessor) expand(sb *strings.Builder, source string, seen map[string]bool) error {
	sc := bufio.NewScanner(strings.NewReader(source))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		name, ok := includeName(line)
		if !ok {
			sb.WriteString(line)
			sb.WriteByte('\n')
			continue
		}
		if seen[name] {
			continue
		}
		src, known := p.includes[name]
		if !known {
			return fmt.Errorf("unknown include %q", name)
		}
		seen[name] = true
		if err := p.expand(sb, src, seen); err != nil {
			return fmt.Errorf("include %q: %w", name, err)
		}
	}
	return sc.Err()
}

// includeName parses a directive line.
func includeName(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "//")
	if !ok {
		return "", false
	}
	rest, ok = strings.CutPrefix(strings.TrimSpace(rest), includeDirective)
	if !ok {
		return "", false
	}
	name := strings.TrimSpace(rest)
	return name, name != ""
}
