package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/honesta/lostfound-api/internal/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const generatePrompt = `Look at the photo of an item found on a college campus and produce:
1. "title": a short category name for the item, for example "Pen", "Bag" or "Smartphone".
2. "questions" and "answers": ownership questions with their factual reference answers.
   - Cheap everyday items (pen, pencil, plain bottle, small stationery): exactly one question, about the colour.
   - Valuable or electronic items (phone, laptop, watch, wallet): two or three specific questions about colour, brand, model or distinctive markings.
Other users only see a very dark black-and-white copy of this photo, so never ask anything that can be read off a dark silhouette.
Answer in JSON.`

const matchPrompt = `Decide whether a claimant really owns a found item by comparing their answers with the finder's reference answers.
Be lenient about wording, synonyms and shades: "dark blue" counts as "blue". Every question must be answered correctly.
Questions: %s
Claimant answers: %s
Reference answers: %s
Answer in JSON with a single boolean field "isCorrect".`

// GeminiOption customises the Gemini client
type GeminiOption func(*genai.ClientConfig)

// WithBaseURL points the client at a different endpoint
func WithBaseURL(url string) GeminiOption {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// Gemini generates challenges and matches answers with a hosted Gemini model
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGemini creates a Gemini-backed generator and matcher
func NewGemini(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger, opts ...GeminiOption) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(clientCfg)
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.TimeoutDuration(),
		logger:  logger,
	}, nil
}

var questionSetSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title": {Type: genai.TypeString},
		"questions": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "1 question for low-value items, 2-3 for high-value items.",
		},
		"answers": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Factual reference answers, one per question.",
		},
	},
	Required: []string{"title", "questions", "answers"},
}

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"isCorrect": {Type: genai.TypeBoolean},
	},
	Required: []string{"isCorrect"},
}

// Generate asks the model for a title and challenge describing the photo
func (g *Gemini) Generate(ctx context.Context, jpeg []byte) (QuestionSet, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(jpeg, "image/jpeg"),
			genai.NewPartFromText(generatePrompt),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   questionSetSchema,
	})
	if err != nil {
		return QuestionSet{}, fmt.Errorf("gemini generate failed: %w", err)
	}

	set, err := parseQuestionSet(resp.Text())
	if err != nil {
		return QuestionSet{}, err
	}

	g.logger.Debug("generated verification questions",
		zap.String("title", set.Title),
		zap.Int("question_count", len(set.Questions)),
		zap.Duration("duration", time.Since(start)),
	)
	return set, nil
}

// Match asks the model whether the given answers match the reference answers
func (g *Gemini) Match(ctx context.Context, questions, given, reference []string) (bool, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	prompt := fmt.Sprintf(matchPrompt, jsonList(questions), jsonList(given), jsonList(reference))
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   verdictSchema,
	})
	if err != nil {
		return false, fmt.Errorf("gemini match failed: %w", err)
	}
	return parseMatchVerdict(resp.Text())
}

func (g *Gemini) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func jsonList(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}
