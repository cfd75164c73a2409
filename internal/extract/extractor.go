package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"

	"go.uber.org/zap"
)

const systemPrompt = `You are an expert AI assistant. Your task is to extract any and all deadlines from emails.
Find any task, event, or application with a specific due date.
Include academic tasks, applications, registrations, submissions, etc.
Use today's date %s as reference for relative dates.
If no deadlines are found, return an empty list of deadlines.
The 'due_date' MUST be in YYYY-MM-DD format.
'task_name' should be specific (e.g., "Homework 3", "Internship Application").
'course_name' can be the course (CS410) or organization (Robotics Club).`

const userPrompt = "Here is the email content:\n\nSubject: %s\n\nBody: %s"

var (
	ErrBlocked       = errors.New("запрос заблокирован моделью")
	ErrMissingAPIKey = errors.New("не задан GOOGLE_API_KEY")
)

var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"deadlines": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"task_name":   map[string]any{"type": "STRING", "description": "The name of the assignment, task, application, or event"},
					"due_date":    map[string]any{"type": "STRING", "description": "The date the task is due, in YYYY-MM-DD format"},
					"course_name": map[string]any{"type": "STRING", "nullable": true, "description": "The course or organization"},
				},
				"required": []string{"task_name", "due_date"},
			},
		},
	},
	"required": []string{"deadlines"},
}

type generator interface {
	GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error)
}

// Extractor просит модель найти дедлайны в письме
type Extractor struct {
	client generator
	model  string
	now    func() time.Time
}

func NewExtractor(client *Client, model string) *Extractor {
	if model == "" {
		model = DefaultModel
	}
	return &Extractor{client: client, model: model, now: time.Now}
}

func (e *Extractor) Validate() error {
	if c, ok := e.client.(*Client); ok && c.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

func (e *Extractor) buildRequest(subject, body string) *GenerateContentRequest {
	temperature := 0.0
	today := deadline.DateOf(e.now()).String()
	return &GenerateContentRequest{
		SystemInstruction: &Content{Parts: []Part{{Text: fmt.Sprintf(systemPrompt, today)}}},
		Contents: []Content{{
			Role:  "user",
			Parts: []Part{{Text: fmt.Sprintf(userPrompt, subject, body)}},
		}},
		GenerationConfig: &GenerationConfig{
			Temperature:      &temperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}
}

// Extract возвращает сырых кандидатов; их проверка - дело вызывающего
func (e *Extractor) Extract(ctx context.Context, subject, body string) ([]deadline.Candidate, error) {
	resp, err := e.client.GenerateContent(ctx, e.model, e.buildRequest(subject, body))
	if err != nil {
		return nil, err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}

	candidates, err := ParseCandidates(resp.Text())
	if err != nil {
		return nil, err
	}
	logger.Debug("Extractor: Ответ модели разобран",
		zap.String("subject", subject),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// ParseCandidates разбирает JSON вида {"deadlines": [...]}; пустой ответ - пустой список.
// Элемент, который не является объектом, превращается в пустого кандидата,
// чтобы он попал в отклонённые и не сорвал разбор соседей.
func ParseCandidates(text string) ([]deadline.Candidate, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var found struct {
		Deadlines []json.RawMessage `json:"deadlines"`
	}
	if err := json.Unmarshal([]byte(text), &found); err != nil {
		return nil, fmt.Errorf("разбор ответа модели: %w", err)
	}

	candidates := make([]deadline.Candidate, 0, len(found.Deadlines))
	for i, raw := range found.Deadlines {
		c, err := decodeCandidate(raw)
		if err != nil {
			logger.Warn("Extractor: Некорректный элемент ответа",
				zap.Int("index", i),
				zap.String("raw", string(raw)),
				zap.Error(err))
			c = deadline.Candidate{}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func decodeCandidate(raw json.RawMessage) (deadline.Candidate, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var c deadline.Candidate
	if err := dec.Decode(&c); err != nil {
		return deadline.Candidate{}, err
	}
	return c, nil
}
