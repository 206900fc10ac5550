package shader

import (
	"fmt"
	"io/fs"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies which pipeline stage a shader's entry point belongs to.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the WGSL attribute name of the stage.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// BindingKind is the address space a resource binding is declared in.
type BindingKind int

const (
	// BindingKindUniform is a var<uniform> declaration.
	BindingKindUniform BindingKind = iota
	// BindingKindReadOnlyStorage is a var<storage> or var<storage, read> declaration.
	BindingKindReadOnlyStorage
	// BindingKindStorage is a var<storage, read_write> declaration.
	BindingKindStorage
)

// ResourceBinding is a buffer declaration reflected from WGSL source.
type ResourceBinding struct {
	Group    int
	Binding  int
	Name     string
	Kind     BindingKind
	TypeName string
	// MinSize is the size of the bound type, or the element stride for a runtime-sized array.
	MinSize uint64
}

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoint    string
	workGroupSize [3]uint32
	bindings      []ResourceBinding
	vertexLayouts []wgpu.VertexBufferLayout
	structs       map[string]wgslTypeLayout
	module        *wgpu.ShaderModuleDescriptor
}

// Shader is a parsed WGSL shader. It exposes the stage entry point, the compute workgroup size,
// the buffer bindings and vertex inputs it declares, and the module descriptor for pipeline creation.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the shader's entry point.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] as the default when
	// @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every buffer binding declared in the source, sorted by group then binding.
	//
	// Returns:
	//   - []ResourceBinding: the declared bindings
	Bindings() []ResourceBinding

	// BindGroupLayoutDescriptor builds the layout of one bind group as seen by this shader's stage.
	//
	// Parameters:
	//   - group: the @group index
	//   - dynamic: binding indices that take a dynamic offset (nil safe)
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the layout, with no entries if the group is not declared
	BindGroupLayoutDescriptor(group int, dynamic map[int]bool) wgpu.BindGroupLayoutDescriptor

	// VertexLayouts returns the vertex buffer layouts built from structs whose fields all carry @location.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: one layout per vertex input struct, in source order
	VertexLayouts() []wgpu.VertexBufferLayout

	// StructLayout returns the host-shareable size and alignment of a struct declared in the source.
	//
	// Parameters:
	//   - name: the struct name
	//
	// Returns:
	//   - size: the struct size in bytes, including trailing padding
	//   - align: the struct alignment in bytes
	//   - ok: false if the struct is unknown or could not be laid out
	StructLayout(name string) (size, align uint64, ok bool)

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader parses WGSL source into a Shader.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage whose entry point should be used
//   - source: the WGSL source code
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the source has no entry point for shaderType
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
		module: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
	}

	cleaned := stripComments(source)
	s.entryPoint = parseEntryPoint(cleaned, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no @%s entry point", key, shaderType)
	}
	if shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(cleaned)
	}

	structs := parseStructBlocks(cleaned)
	s.structs = computeStructLayouts(structs)
	s.bindings = parseBindings(cleaned, s.structs)
	if shaderType == ShaderTypeVertex {
		s.vertexLayouts = parseVertexLayouts(structs)
	}
	return s, nil
}

// LoadShader reads WGSL source from a file system, typically an embed.FS, and parses it.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage whose entry point should be used
//   - fsys: the file system holding the source
//   - path: the path of the source within fsys
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the file cannot be read or parsed
func LoadShader(key string, shaderType ShaderType, fsys fs.FS, path string) (Shader, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read %q: %w", key, path, err)
	}
	return NewShader(key, shaderType, string(data))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Bindings() []ResourceBinding {
	return s.bindings
}

func (s *shader) BindGroupLayoutDescriptor(group int, dynamic map[int]bool) wgpu.BindGroupLayoutDescriptor {
	var visibility wgpu.ShaderStage
	switch s.shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
	}

	desc := wgpu.BindGroupLayoutDescriptor{
		Label: fmt.Sprintf("%s group %d", s.key, group),
	}
	for _, b := range s.bindings {
		if b.Group != group {
			continue
		}
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(b.Binding),
			Visibility: visibility,
		}
		switch b.Kind {
		case BindingKindUniform:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case BindingKindReadOnlyStorage:
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case BindingKindStorage:
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		entry.Buffer.HasDynamicOffset = dynamic[b.Binding]
		entry.Buffer.MinBindingSize = b.MinSize
		desc.Entries = append(desc.Entries, entry)
	}
	return desc
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) StructLayout(name string) (uint64, uint64, bool) {
	l, ok := s.structs[name]
	return l.size, l.align, ok
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}
