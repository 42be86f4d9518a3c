// annotations.go defines the annotations understood by the Oxylus WGSL pre-processor.
// Annotations are single-line WGSL comments prefixed with @oxy: and are replaced during
// pre-processing, so the shader compiler never sees them.
package shader

import (
	"fmt"
	"strings"
)

// annotationPrefix marks an annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered WGSL source block at the annotation site.
	// Each block is injected at most once per shader.
	//
	// Syntax: //@oxy:include <name>
	//
	// Example: //@oxy:include camera
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypePush declares the push constant block of the shader. Devices without push
	// constants receive it as a uniform buffer at gpu.PushConstantGroup, binding 0.
	//
	// Syntax: //@oxy:push <wgsl_type>
	//
	// Example: //@oxy:push CullConstants
	AnnotationTypePush AnnotationType = "push"
)

// AnnotationArg is an annotation argument: the name of an include, or a WGSL type.
type AnnotationArg string

const (
	// AnnotationArgCamera is the CameraData struct.
	AnnotationArgCamera AnnotationArg = "camera"
	// AnnotationArgTransform is the Transform struct.
	AnnotationArgTransform AnnotationArg = "transform"
	// AnnotationArgMaterial is the Material struct.
	AnnotationArgMaterial AnnotationArg = "material"
	// AnnotationArgMesh holds the Vertex, Meshlet and Mesh structs.
	AnnotationArgMesh AnnotationArg = "mesh"
)

// Annotation is one parsed annotation.
type Annotation struct {
	Type AnnotationType
	Arg  AnnotationArg
	// Line is the 1-based source line, used in errors.
	Line int
}

// parseAnnotation parses one line of WGSL. Lines without the annotation prefix return nil
// and no error.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	comment, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	after, ok := strings.CutPrefix(strings.TrimSpace(comment), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude, AnnotationTypePush:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy:%s requires exactly one argument", lineNum, args[0])
		}
		return &Annotation{Type: AnnotationType(args[0]), Arg: AnnotationArg(args[1]), Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
