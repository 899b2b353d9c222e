// Package shader loads the engine's WGSL programs, expands their includes and reflects the bind
// group layouts, vertex layouts and workgroup sizes the renderer needs to build pipelines.
package shader

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/*.wgsl assets/include/*.wgsl
var assets embed.FS

// ShaderType identifies the pipeline stage a shader is loaded for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a render pipeline.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment stage of a render pipeline.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return "compute"
	}
}

func (t ShaderType) visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	default:
		return wgpu.ShaderStageCompute
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []wgpu.VertexBufferLayout
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor
}

// Shader is one stage of a pipeline: expanded WGSL source plus everything reflected from it.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the expanded WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source with includes spliced in
	Source() string

	// BindGroupLayoutDescriptor retrieves the layout of one bind group.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor, empty if the group is not declared
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors retrieves every declared bind group layout keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the WGSL variable name bound at group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or "" if not declared
	BindGroupVarName(group, binding int) string

	// VertexLayouts retrieves the vertex buffer layouts of a vertex shader in slot order.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts; nil for other stages or fullscreen shaders
	VertexLayouts() []wgpu.VertexBufferLayout

	// EntryPoint returns the entry point name for this shader's stage.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string

	// WorkgroupSize returns the workgroup size of a compute shader, [0, 0, 0] for other stages.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Module returns the shader module descriptor used to create the GPU module.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// ShaderType returns the stage this shader was loaded for.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType
}

var _ Shader = &shader{}

// NewShader loads a shader stage from a file on disk.
// It panics if the file cannot be read, an include is unknown or the stage has no entry point;
// shader sources are part of the program, so these are programming errors.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the pipeline stage
//   - sourcePath: the file path to read WGSL source from
//
// Returns:
//   - Shader: the loaded shader
func NewShader(key string, shaderType ShaderType, sourcePath string) Shader {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		panic(fmt.Sprintf("shader: failed to read source file %q: %v", sourcePath, err))
	}
	return NewShaderFromSource(key, shaderType, string(data))
}

// NewShaderFromAsset loads a shader stage from the embedded engine assets.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the pipeline stage
//   - name: asset name as returned by AssetNames, e.g. "lighting.wgsl"
//
// Returns:
//   - Shader: the loaded shader
func NewShaderFromAsset(key string, shaderType ShaderType, name string) Shader {
	src, err := Asset(name)
	if err != nil {
		panic(fmt.Sprintf("shader: %v", err))
	}
	return NewShaderFromSource(key, shaderType, src)
}

// NewShaderFromSource expands and reflects WGSL source for one stage.
func NewShaderFromSource(key string, shaderType ShaderType, source string) Shader {
	expanded, err := NewPreProcessor().Process(source)
	if err != nil {
		panic(fmt.Sprintf("shader: failed to pre-process %s: %v", key, err))
	}
	s := &shader{
		key:        key,
		source:     expanded,
		shaderType: shaderType,
		module: &wgpu.ShaderModuleDescriptor{
			Label:          key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: expanded},
		},
	}

	clean := stripComments(expanded)
	s.entryPoint = reflectEntryPoint(clean, shaderType)
	if s.entryPoint == "" {
		panic(fmt.Sprintf("shader: %s has no @%s entry point", key, shaderType))
	}
	switch shaderType {
	case ShaderTypeVertex:
		s.vertexLayouts = reflectVertexLayouts(clean)
	case ShaderTypeCompute:
		s.workGroupSize = reflectWorkgroupSize(clean)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = reflectBindGroups(clean, shaderType.visibility())
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

// AssetNames lists the embedded pipeline shaders, sorted.
//
// Returns:
//   - []string: file names such as "geometry_vs.wgsl"
func AssetNames() []string {
	entries, err := fs.ReadDir(assets, "assets")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".wgsl" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Asset returns the raw source of an embedded pipeline shader.
//
// Parameters:
//   - name: the asset file name
//
// Returns:
//   - string: unexpanded WGSL source
//   - error: error if no such asset exists
func Asset(name string) (string, error) {
	data, err := assets.ReadFile(path.Join("assets", name))
	if err != nil {
		return "", fmt.Errorf("unknown shader asset %q: %w", name, err)
	}
	return string(data), nil
}

// Expand returns an embedded asset with its includes spliced in.
func Expand(name string) (string, error) {
	src, err := Asset(name)
	if err != nil {
		return "", err
	}
	return NewPreProcessor().Process(src)
}

func snippetNames() []string {
	entries, err := fs.ReadDir(assets, "assets/include")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".wgsl"))
	}
	return names
}

func snippet(name string) (string, error) {
	data, err := assets.ReadFile(path.Join("assets/include", name+".wgsl"))
	return string(data), err
}
