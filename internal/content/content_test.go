package content

import (
	"strings"
	"testing"

	"github.com/finlit-labs/lessonforge/internal/engine"
)

const validLesson = `{
	"slug": "cashflow-101",
	"title": "Cashflow Basics",
	"description": "Income, expenses, and what is left over.",
	"steps": [
		{"id": "intro", "type": "info", "body": "Money in, money out."},
		{
			"id": "q1",
			"type": "mcq",
			"question": "Which of these is income?",
			"is_assessment": true,
			"record_incorrect": true,
			"options": [
				{"id": "a", "label": "Rent you pay"},
				{"id": "b", "label": "Your salary", "is_correct": true}
			]
		},
		{"id": "end", "type": "summary", "title": "Nice work"}
	]
}`

func TestParseValidLesson(t *testing.T) {
	lesson, err := Parse([]byte(validLesson))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if lesson.Slug != "cashflow-101" {
		t.Errorf("expected slug cashflow-101, got %q", lesson.Slug)
	}
	if len(lesson.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(lesson.Steps))
	}
	if lesson.Steps[1].Type != engine.StepMCQ {
		t.Errorf("expected mcq, got %q", lesson.Steps[1].Type)
	}
	if !lesson.Steps[1].Options[1].IsCorrect {
		t.Error("expected option b to be correct")
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "not json",
			doc:     `{slug:`,
			wantErr: "invalid JSON",
		},
		{
			name:    "missing title",
			doc:     `{"slug": "x", "steps": [{"id": "a", "type": "info", "body": "b"}]}`,
			wantErr: "schema validation",
		},
		{
			name:    "bad slug",
			doc:     `{"slug": "Not A Slug", "title": "T", "steps": [{"id": "a", "type": "info", "body": "b"}]}`,
			wantErr: "schema validation",
		},
		{
			name:    "unknown step type",
			doc:     `{"slug": "x", "title": "T", "steps": [{"id": "a", "type": "essay"}]}`,
			wantErr: "schema validation",
		},
		{
			name:    "empty steps",
			doc:     `{"slug": "x", "title": "T", "steps": []}`,
			wantErr: "schema validation",
		},
		{
			name: "schema-valid but broken invariants",
			doc: `{"slug": "x", "title": "T", "steps": [
				{"id": "a", "type": "mcq", "question": "?", "record_incorrect": true,
				 "options": [{"id": "o1", "label": "1"}, {"id": "o2", "label": "2"}]}
			]}`,
			wantErr: "no correct option",
		},
		{
			name: "duplicate step ids",
			doc: `{"slug": "x", "title": "T", "steps": [
				{"id": "a", "type": "info", "body": "b"},
				{"id": "a", "type": "info", "body": "c"}
			]}`,
			wantErr: "duplicate step id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHashIsStable(t *testing.T) {
	h1 := Hash([]byte(validLesson))
	h2 := Hash([]byte(validLesson))
	if h1 != h2 {
		t.Error("same bytes should hash identically")
	}
	if h1 == Hash([]byte(validLesson+" ")) {
		t.Error("different bytes should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}
