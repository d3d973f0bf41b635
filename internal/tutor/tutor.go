// Package tutor generates hints for stuck students via an OpenAI-compatible
// API. The tutor sees the answer key but is instructed never to reveal it.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/finlit-labs/lessonforge/internal/engine"
)

var markupRegex = regexp.MustCompile(`(?i)</?\s*(student-answer|system-instructions)\b[^>]*>`)

// HintResult is the parsed tutor response.
type HintResult struct {
	Hint string `json:"hint"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new tutor client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Hint asks the tutor for a nudge on the given step. The student's current
// answer, if any, is included so the hint can address their actual mistake.
func (c *Client) Hint(ctx context.Context, step engine.Step, answer engine.AnswerState) (string, error) {
	systemPrompt := buildHintSystemPrompt(step)
	userMsg := describeAnswer(step, answer)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.5,
	})
	if err != nil {
		return "", fmt.Errorf("tutor API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("tutor returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("tutor response", "step", step.ID, "raw", raw)

	var result HintResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("parse tutor response: %w (raw: %s)", err, raw)
	}
	if result.Hint == "" {
		return "", fmt.Errorf("tutor returned an empty hint")
	}

	return result.Hint, nil
}

func buildHintSystemPrompt(step engine.Step) string {
	var sb strings.Builder
	sb.WriteString("You are a patient tutor in a financial literacy course for young learners. ")
	sb.WriteString("A student is stuck on the exercise below and asked for a hint.\n\n")
	sb.WriteString(describeStep(step))

	sb.WriteString("\nINSTRUCTIONS:\n")
	sb.WriteString("- Give ONE short hint, at most two sentences.\n")
	sb.WriteString("- NEVER reveal the correct answer or quote the answer key.\n")
	sb.WriteString("- Nudge the student toward the right way of thinking about the problem.\n")
	sb.WriteString("- If the student's current answer is partly right, say what is on the right track without confirming specifics.\n")
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"hint": "<your hint>"}`)
	sb.WriteString("\n")

	return sb.String()
}

// describeStep renders the step's content and answer key for the system
// prompt. The key stays server side; only the hint reaches the student.
func describeStep(step engine.Step) string {
	var sb strings.Builder

	switch step.Type {
	case engine.StepMCQ, engine.StepMultiSelect:
		sb.WriteString("QUESTION: " + step.Question + "\n\nCHOICES:\n")
		for _, o := range step.Options {
			sb.WriteString("- " + o.Label)
			if o.IsCorrect {
				sb.WriteString(" (correct)")
			}
			sb.WriteString("\n")
		}
	case engine.StepTrueFalse:
		sb.WriteString("STATEMENT: " + step.Statement + "\n")
		sb.WriteString("ANSWER KEY: the statement is " + strconv.FormatBool(step.CorrectValue) + "\n")
	case engine.StepOrder:
		sb.WriteString("TASK: put these in the right order.\nQUESTION: " + step.Question + "\n\nITEMS IN CORRECT ORDER:\n")
		for i := 1; i <= len(step.Items); i++ {
			for _, it := range step.Items {
				if it.CorrectOrder == i {
					sb.WriteString(fmt.Sprintf("%d. %s\n", i, it.Label))
				}
			}
		}
	case engine.StepMatch:
		sb.WriteString("TASK: match each item on the left with one on the right.\n\nCORRECT PAIRS:\n")
		for _, p := range step.CorrectPairs {
			sb.WriteString("- " + matchLabel(step.LeftItems, p.LeftID) + " -> " + matchLabel(step.RightItems, p.RightID) + "\n")
		}
	default:
		sb.WriteString("CONTENT: " + step.Body + "\n")
	}

	if step.Explanation != "" {
		sb.WriteString("\nEXPLANATION (not shown to student yet):\n" + step.Explanation + "\n")
	}
	return sb.String()
}

// describeAnswer renders the student's current answer as the user message.
func describeAnswer(step engine.Step, answer engine.AnswerState) string {
	var parts []string

	if answer.SelectedOptionID != "" {
		parts = append(parts, "I picked: "+sanitize(optionLabel(step, answer.SelectedOptionID)))
	}
	if len(answer.SelectedOptionIDs) > 0 {
		labels := make([]string, 0, len(answer.SelectedOptionIDs))
		for _, id := range answer.SelectedOptionIDs {
			labels = append(labels, optionLabel(step, id))
		}
		parts = append(parts, "I picked: "+sanitize(strings.Join(labels, ", ")))
	}
	if answer.SelectedValue != nil {
		parts = append(parts, "I answered: "+strconv.FormatBool(*answer.SelectedValue))
	}
	if len(answer.OrderedItemIDs) > 0 {
		labels := make([]string, 0, len(answer.OrderedItemIDs))
		for _, id := range answer.OrderedItemIDs {
			for _, it := range step.Items {
				if it.ID == id {
					labels = append(labels, it.Label)
				}
			}
		}
		parts = append(parts, "My current order: "+sanitize(strings.Join(labels, " | ")))
	}
	if len(answer.Matches) > 0 {
		pairs := make([]string, 0, len(answer.Matches))
		for _, l := range step.LeftItems {
			if rightID, ok := answer.Matches[l.ID]; ok {
				pairs = append(pairs, l.Label+" -> "+matchLabel(step.RightItems, rightID))
			}
		}
		parts = append(parts, "My pairings so far: "+sanitize(strings.Join(pairs, ", ")))
	}

	if len(parts) == 0 {
		return "I have not answered yet. Can you give me a hint?"
	}
	return strings.Join(parts, "\n") + "\nCan you give me a hint?"
}

func optionLabel(step engine.Step, id string) string {
	for _, o := range step.Options {
		if o.ID == id {
			return o.Label
		}
	}
	return id
}

func matchLabel(items []engine.MatchItem, id string) string {
	for _, it := range items {
		if it.ID == id {
			return it.Label
		}
	}
	return id
}

func sanitize(s string) string {
	s = markupRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > 2000 {
		runes := []rune(s)
		s = string(runes[:2000]) + " [truncated]"
	}
	return s
}
