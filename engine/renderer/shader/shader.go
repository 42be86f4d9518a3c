// Package shader loads WGSL shaders, expands @oxy: annotations and reflects the entry points
// and binding slots pipelines are created with.
package shader

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/gogpu/naga"
)

// Stage identifies a shader stage.
type Stage int

const (
	StageCompute Stage = iota
	StageVertex
	StageFragment
)

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	bindings      map[uint32][]uint32
	workgroupSize [3]uint32
	entryPoints   map[Stage]string
}

// Shader is a pre-processed WGSL module.
type Shader interface {
	// Key returns the unique identifier of the shader, its file name without extension for
	// shaders loaded from a file system.
	Key() string

	// Source returns the pre-processed WGSL source.
	Source() string

	// Bindings returns the declared binding slots per group.
	Bindings() map[uint32][]uint32

	// WorkgroupSize returns the workgroup size of the compute entry point, or [1, 1, 1].
	WorkgroupSize() [3]uint32

	// EntryPoint returns the first entry point of the given stage, or "".
	EntryPoint(stage Stage) string

	// IsCompute reports whether the shader has a compute entry point.
	IsCompute() bool
}

var _ Shader = &shader{}

// NewShader pre-processes source and reflects it.
//
// Parameters:
//   - key: the unique shader key
//   - source: the raw WGSL source
//   - pp: the pre-processor to expand annotations with
//
// Returns:
//   - Shader: the processed shader
//   - error: an error if pre-processing fails
func NewShader(key, source string, pp PreProcessor) (Shader, error) {
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", key, err)
	}
	s := &shader{
		key:           key,
		source:        processed,
		bindings:      parseBindings(processed),
		workgroupSize: parseWorkgroupSize(processed),
		entryPoints:   make(map[Stage]string),
	}
	for _, stage := range []Stage{StageCompute, StageVertex, StageFragment} {
		if ep := parseEntryPoint(processed, stage); ep != "" {
			s.entryPoints[stage] = ep
		}
	}
	if len(s.entryPoints) == 0 {
		return nil, fmt.Errorf("shader %q has no entry point", key)
	}
	return s, nil
}

// Load reads a WGSL file from fsys and pre-processes it. The key is the file name without
// its extension.
//
// Parameters:
//   - fsys: the file system to read from
//   - name: the path of the shader within fsys
//   - pp: the pre-processor to expand annotations with
//
// Returns:
//   - Shader: the processed shader
//   - error: an error if the file cannot be read or pre-processing fails
func Load(fsys fs.FS, name string, pp PreProcessor) (Shader, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader %q: %w", name, err)
	}
	key := strings.TrimSuffix(path.Base(name), path.Ext(name))
	return NewShader(key, string(data), pp)
}

// LoadAll loads every .wgsl file under dir, keyed by Shader.Key.
func LoadAll(fsys fs.FS, dir string, pp PreProcessor) (map[string]Shader, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.wgsl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list shaders in %q: %w", dir, err)
	}
	out := make(map[string]Shader, len(matches))
	for _, m := range matches {
		s, err := Load(fsys, m, pp)
		if err != nil {
			return nil, err
		}
		out[s.Key()] = s
	}
	return out, nil
}

// Validate compiles the shader with naga and reports the first error.
func Validate(s Shader) error {
	if _, err := naga.Compile(s.Source()); err != nil {
		return fmt.Errorf("shader %q failed validation: %w", s.Key(), err)
	}
	return nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Bindings() map[uint32][]uint32 {
	return s.bindings
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workgroupSize
}

func (s *shader) EntryPoint(stage Stage) string {
	return s.entryPoints[stage]
}

func (s *shader) IsCompute() bool {
	_, ok := s.entryPoints[StageCompute]
	return ok
}
