package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// typeLayout is the size and alignment of a WGSL type in host-shareable memory.
type typeLayout struct {
	size  uint64
	align uint64
}

type structField struct {
	name     string
	typeName string
	location int
	builtin  bool
}

type structDecl struct {
	name   string
	fields []structField
}

var vertexFormats = map[string]struct {
	format wgpu.VertexFormat
	size   uint64
}{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, 4},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
}

// primitiveLayouts follows the WGSL alignment and size table.
var primitiveLayouts = map[string]typeLayout{
	"f32":         {4, 4},
	"i32":         {4, 4},
	"u32":         {4, 4},
	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
	"vec2<f32>":   {8, 8},
	"vec2<u32>":   {8, 8},
	"vec2<i32>":   {8, 8},
	"vec3<f32>":   {12, 16},
	"vec3<u32>":   {12, 16},
	"vec3<i32>":   {12, 16},
	"vec4<f32>":   {16, 16},
	"vec4<u32>":   {16, 16},
	"vec4<i32>":   {16, 16},
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
}

var textureDimensions = map[string]wgpu.TextureViewDimension{
	"texture_2d":         wgpu.TextureViewDimension2D,
	"texture_2d_array":   wgpu.TextureViewDimension2DArray,
	"texture_3d":         wgpu.TextureViewDimension3D,
	"texture_cube":       wgpu.TextureViewDimensionCube,
	"texture_depth_2d":   wgpu.TextureViewDimension2D,
	"texture_storage_2d": wgpu.TextureViewDimension2D,
	"texture_storage_3d": wgpu.TextureViewDimension3D,
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var storageFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32float":    wgpu.TextureFormatR32Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

var (
	structRegex    = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex  = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex   = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex     = regexp.MustCompile(`^(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)$`)
	workgroupRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)
	bindingRegex   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
	entryRegex     = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}
)

// reflectEntryPoint returns the first entry point of the given stage, or "".
func reflectEntryPoint(src string, t ShaderType) string {
	if m := entryRegex[t].FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

// reflectWorkgroupSize returns @workgroup_size with omitted dimensions defaulting to 1.
func reflectWorkgroupSize(src string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupRegex.FindStringSubmatch(src)
	if m == nil {
		return size
	}
	for i := range 3 {
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// reflectVertexLayouts turns every struct made only of @location fields into one vertex buffer layout.
// A struct named InstanceInput steps per instance. Layouts are indexed in declaration order.
func reflectVertexLayouts(src string) []wgpu.VertexBufferLayout {
	var layouts []wgpu.VertexBufferLayout
	for _, s := range parseStructs(src) {
		if !isVertexInput(s) {
			continue
		}
		layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
		if s.name == "InstanceInput" {
			layout.StepMode = wgpu.VertexStepModeInstance
		}
		ok := true
		for _, f := range s.fields {
			vf, known := vertexFormats[f.typeName]
			if !known {
				ok = false
				break
			}
			layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
				Format:         vf.format,
				Offset:         layout.ArrayStride,
				ShaderLocation: uint32(f.location),
			})
			layout.ArrayStride += vf.size
		}
		if ok {
			layouts = append(layouts, layout)
		}
	}
	return layouts
}

func isVertexInput(s structDecl) bool {
	if len(s.fields) == 0 {
		return false
	}
	for _, f := range s.fields {
		if f.builtin || f.location < 0 {
			return false
		}
	}
	return true
}

// reflectBindGroups extracts every @group/@binding declaration. visibility is applied to all entries;
// pipelines OR the visibilities of their stages together.
func reflectBindGroups(src string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	layouts := structLayouts(parseStructs(src))
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	names := make(map[int]map[int]string)

	for _, m := range bindingRegex.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		space, name, typeName := strings.TrimSpace(m[3]), m[4], strings.TrimSpace(m[5])

		entry := bindingEntry(uint32(binding), visibility, space, typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := layoutOf(typeName, layouts); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		groups[group] = append(groups[group], entry)
		if names[group] == nil {
			names[group] = make(map[int]string)
		}
		names[group][binding] = name
	}

	out := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })
		out[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return out, names
}

func bindingEntry(binding uint32, visibility wgpu.ShaderStage, space, typeName string) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}
	switch {
	case space == "uniform":
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(space, "storage"):
		e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(space, "read_write") {
			e.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case typeName == "sampler":
		e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		e.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(typeName, "texture_storage_"):
		base, params := splitParams(typeName)
		e.StorageTexture.ViewDimension = textureDimensions[base]
		format, access, _ := strings.Cut(params, ",")
		e.StorageTexture.Format = storageFormats[strings.TrimSpace(format)]
		e.StorageTexture.Access = storageAccess[strings.TrimSpace(access)]
	case strings.HasPrefix(typeName, "texture_depth_"):
		e.Texture.SampleType = wgpu.TextureSampleTypeDepth
		e.Texture.ViewDimension = textureDimensions[typeName]
	case strings.HasPrefix(typeName, "texture_"):
		base, param := splitParams(typeName)
		e.Texture.ViewDimension = textureDimensions[base]
		e.Texture.SampleType = sampleTypes[param]
	}
	return e
}

// layoutOf resolves a type against the primitives and the struct layouts. A runtime-sized array
// resolves to one element stride so callers can scale it.
func layoutOf(typeName string, structs map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := structs[typeName]; ok {
		return l, true
	}
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return typeLayout{}, false
	}
	elem, count, fixed := strings.Cut(typeName[len("array<"):len(typeName)-1], ",")
	el, ok := layoutOf(strings.TrimSpace(elem), structs)
	if !ok {
		return typeLayout{}, false
	}
	stride := alignUp(el.align, el.size)
	if !fixed {
		return typeLayout{stride, el.align}, true
	}
	n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{n * stride, el.align}, true
}

// structLayouts resolves struct sizes until no further struct can be resolved, so structs may
// reference each other in any order.
func structLayouts(structs []structDecl) map[string]typeLayout {
	out := make(map[string]typeLayout, len(structs))
	pending := structs
	for len(pending) > 0 {
		var next []structDecl
		for _, s := range pending {
			if l, ok := structLayout(s, out); ok {
				out[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return out
}

func structLayout(s structDecl, known map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	align := uint64(1)
	for _, f := range s.fields {
		if f.builtin {
			continue
		}
		l, ok := layoutOf(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = alignUp(l.align, offset) + l.size
		align = max(align, l.align)
	}
	return typeLayout{alignUp(align, offset), align}, true
}

func alignUp(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func parseStructs(src string) []structDecl {
	var out []structDecl
	for _, m := range structRegex.FindAllStringSubmatch(src, -1) {
		s := structDecl{name: m[1]}
		for _, part := range splitTopLevel(m[2]) {
			part = strings.TrimSpace(part)
			fm := fieldRegex.FindStringSubmatch(part)
			if fm == nil {
				continue
			}
			f := structField{
				name:     fm[1],
				typeName: strings.TrimSpace(fm[2]),
				location: -1,
				builtin:  builtinRegex.MatchString(part),
			}
			if lm := locationRegex.FindStringSubmatch(part); lm != nil {
				f.location, _ = strconv.Atoi(lm[1])
			}
			s.fields = append(s.fields, f)
		}
		out = append(out, s)
	}
	return out
}

// splitTopLevel splits a struct body at commas outside angle brackets.
func splitTopLevel(body string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, body[start:])
}

func splitParams(typeName string) (string, string) {
	base, params, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return base, strings.TrimSpace(strings.TrimSuffix(params, ">"))
}

// stripComments removes line comments and (nested) block comments.
func stripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	depth := 0
	for i := 0; i < len(src); i++ {
		if i+1 < len(src) {
			switch {
			case src[i] == '/' && src[i+1] == '*':
				depth++
				i++
				continue
			case src[i] == '*' && src[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case src[i] == '/' && src[i+1] == '/' && depth == 0:
				for i < len(src) && src[i] != '\n' {
					i++
				}
				if i < len(src) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(src[i])
		}
	}
	return sb.String()
}
