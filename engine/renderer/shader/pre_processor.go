package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxylus-go/engine/asset"
	"github.com/Carmen-Shannon/oxylus-go/engine/camera"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includes maps include names to their WGSL source.
	includes map[AnnotationArg]string
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process replaces every annotation in source with its WGSL output. Include blocks are
	// emitted once, at their first annotation.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed or references an unknown include
	Process(source string) (string, error)

	// Register adds or replaces an include block.
	//
	// Parameters:
	//   - name: the include name used in //@oxy:include
	//   - source: the WGSL source injected for it
	Register(name AnnotationArg, source string)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's GPU record structs registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		includes: map[AnnotationArg]string{
			AnnotationArgCamera:    camera.GPUCameraDataSource,
			AnnotationArgTransform: scene.GPUTransformSource,
			AnnotationArgMaterial:  asset.GPUMaterialSource,
			AnnotationArgMesh:      asset.GPUMeshSource,
		},
	}
}

func (p *preProcessor) Register(name AnnotationArg, source string) {
	p.includes[name] = source
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[AnnotationArg]bool)
	pushed := false

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			src, ok := p.includes[a.Arg]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Arg)
			}
			if included[a.Arg] {
				continue
			}
			included[a.Arg] = true
			out = append(out, strings.TrimRight(src, "\n"))
		case AnnotationTypePush:
			if pushed {
				return "", fmt.Errorf("line %d: second @oxy:push in one shader", a.Line)
			}
			pushed = true
			out = append(out, fmt.Sprintf("@group(%d) @binding(0) var<uniform> pc: %s;", gpu.PushConstantGroup, a.Arg))
		}
	}
	return strings.Join(out, "\n"), nil
}
