package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// wgslVertexFormatMap maps the WGSL vertex input types the engine uploads to their wgpu vertex format.
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2u":     {wgpu.VertexFormatUint32x2, 8},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field after its attributes: name, colon, type.
	fieldRegex = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)

	// entryRegex matches a stage attribute followed by its function name; the stage is captured first.
	entryRegex = regexp.MustCompile(`(?s)@(vertex|fragment|compute)\b[^{]*?\bfn\s+(\w+)`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(1) var<storage, read_write> points: array<Point>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseEntryPoint returns the name of the first function attributed with the given stage.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//   - shaderType: the stage to look for
//
// Returns:
//   - string: the entry point function name, or empty string if not found
func parseEntryPoint(source string, shaderType ShaderType) string {
	want := shaderType.String()
	for _, m := range entryRegex.FindAllStringSubmatch(source, -1) {
		if m[1] == want {
			return m[2]
		}
	}
	return ""
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions.
// Omitted dimensions default to 1, as does a missing attribute.
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(source)
	if match == nil {
		return result
	}
	for i := range 3 {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseBindings extracts every buffer declared with @group/@binding. Handle types (textures, samplers)
// are not bound by this engine and are skipped.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//   - structs: the struct layouts used to size each binding
//
// Returns:
//   - []ResourceBinding: the bindings sorted by group then binding
func parseBindings(source string, structs map[string]wgslTypeLayout) []ResourceBinding {
	var out []ResourceBinding
	for _, m := range bindGroupDeclRegex.FindAllStringSubmatch(source, -1) {
		addressSpace := strings.TrimSpace(m[3])
		if addressSpace == "" {
			continue
		}
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])

		b := ResourceBinding{
			Group:    group,
			Binding:  binding,
			Name:     m[4],
			TypeName: strings.TrimSpace(m[5]),
		}
		switch {
		case addressSpace == "uniform":
			b.Kind = BindingKindUniform
		case strings.Contains(addressSpace, "read_write"):
			b.Kind = BindingKindStorage
		default:
			b.Kind = BindingKindReadOnlyStorage
		}
		if l, ok := resolveTypeLayout(b.TypeName, structs); ok {
			b.MinSize = l.size
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{
			name:   m[1],
			fields: parseStructFields(m[2]),
		})
	}
	return structs
}

func parseStructFields(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}

		field := parsedField{
			name:      fm[1],
			typeName:  strings.TrimSpace(fm[2]),
			location:  -1,
			isBuiltin: builtinRegex.MatchString(part),
		}
		if lm := locationRegex.FindStringSubmatch(part); lm != nil {
			if loc, err := strconv.Atoi(lm[1]); err == nil {
				field.location = loc
			}
		}
		fields = append(fields, field)
	}
	return fields
}

// parseVertexLayouts builds one wgpu.VertexBufferLayout per struct that is a pure vertex input,
// meaning every field has @location and none is @builtin. Structs with a field type that has no
// vertex format are skipped.
func parseVertexLayouts(structs []parsedStruct) []wgpu.VertexBufferLayout {
	var layouts []wgpu.VertexBufferLayout

next:
	for _, ps := range structs {
		if len(ps.fields) == 0 {
			continue
		}
		attrs := make([]wgpu.VertexAttribute, 0, len(ps.fields))
		var offset uint64
		for _, f := range ps.fields {
			info, ok := wgslVertexFormatMap[f.typeName]
			if f.isBuiltin || f.location < 0 || !ok {
				continue next
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         info.format,
				Offset:         offset,
				ShaderLocation: uint32(f.location),
			})
			offset += info.size
		}
		layouts = append(layouts, wgpu.VertexBufferLayout{
			ArrayStride: offset,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		})
	}
	return layouts
}
