// Package content loads authored lesson files: JSON documents validated
// against an embedded schema before the step invariants are checked.
package content

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/finlit-labs/lessonforge/internal/engine"
)

//go:embed schema.json
var schemaJSON []byte

// Lesson is the parsed form of one authored lesson file.
type Lesson struct {
	Slug        string        `json:"slug"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Steps       []engine.Step `json:"steps"`
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func lessonSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var parsed any
		if err := json.Unmarshal(schemaJSON, &parsed); err != nil {
			compileErr = fmt.Errorf("parse embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema://lesson.json", parsed); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("schema://lesson.json")
	})
	return compiledSchema, compileErr
}

// Parse validates and decodes a lesson document. Schema violations and step
// invariant failures both come back as errors; a nil error means the lesson
// is safe to store and run.
func Parse(raw []byte) (*Lesson, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	schema, err := lessonSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	var lesson Lesson
	if err := json.Unmarshal(raw, &lesson); err != nil {
		return nil, fmt.Errorf("decode lesson: %w", err)
	}
	if err := engine.ValidateSteps(lesson.Steps); err != nil {
		return nil, fmt.Errorf("lesson %s: %w", lesson.Slug, err)
	}
	return &lesson, nil
}

// LoadFile reads and parses a lesson file, returning the lesson together with
// the hex sha256 of the file contents for import bookkeeping.
func LoadFile(path string) (*Lesson, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read lesson file: %w", err)
	}
	lesson, err := Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return lesson, Hash(raw), nil
}

// Hash returns the hex sha256 of raw lesson bytes.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
