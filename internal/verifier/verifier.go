package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// MaxQuestions caps how many challenge questions one item can carry
const MaxQuestions = 5

const (
	FallbackTitle    = "Lost Item"
	FallbackQuestion = "What color is this item?"
)

var (
	// ErrEmptyResponse is returned when the model answered with no text
	ErrEmptyResponse = errors.New("empty model response")
	// ErrMalformedResponse is returned when the model output does not fit the schema
	ErrMalformedResponse = errors.New("malformed model response")
)

// QuestionSet is a generated ownership challenge for a photo
type QuestionSet struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
	Answers   []string `json:"answers"`
}

// FallbackQuestionSet is used when the generator is unavailable
func FallbackQuestionSet() QuestionSet {
	return QuestionSet{
		Title:     FallbackTitle,
		Questions: []string{FallbackQuestion},
		Answers:   []string{""},
	}
}

// QuestionGenerator writes a title and challenge for a JPEG photo
type QuestionGenerator interface {
	Generate(ctx context.Context, jpeg []byte) (QuestionSet, error)
}

// AnswerMatcher decides whether a claimant's answers match the reference answers
type AnswerMatcher interface {
	Match(ctx context.Context, questions, given, reference []string) (bool, error)
}

// parseQuestionSet decodes and tidies a generator response.
// Questions without an answer get an empty reference; blank questions are dropped.
func parseQuestionSet(text string) (QuestionSet, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return QuestionSet{}, ErrEmptyResponse
	}

	var raw QuestionSet
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return QuestionSet{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	set := QuestionSet{Title: strings.TrimSpace(raw.Title)}
	for i, q := range raw.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		answer := ""
		if i < len(raw.Answers) {
			answer = strings.TrimSpace(raw.Answers[i])
		}
		set.Questions = append(set.Questions, q)
		set.Answers = append(set.Answers, answer)
		if len(set.Questions) == MaxQuestions {
			break
		}
	}

	if len(set.Questions) == 0 {
		return QuestionSet{}, fmt.Errorf("%w: no questions", ErrMalformedResponse)
	}
	if set.Title == "" {
		set.Title = FallbackTitle
	}
	return set, nil
}

type matchVerdict struct {
	IsCorrect *bool `json:"isCorrect"`
}

func parseMatchVerdict(text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, ErrEmptyResponse
	}
	var v matchVerdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if v.IsCorrect == nil {
		return false, fmt.Errorf("%w: isCorrect missing", ErrMalformedResponse)
	}
	return *v.IsCorrect, nil
}

// FallbackGenerator returns the fixed fallback challenge when the primary generator fails
type FallbackGenerator struct {
	primary QuestionGenerator
	logger  *zap.Logger
}

// NewFallbackGenerator wraps primary. A nil primary always yields the fallback.
func NewFallbackGenerator(primary QuestionGenerator, logger *zap.Logger) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, logger: logger}
}

func (g *FallbackGenerator) Generate(ctx context.Context, jpeg []byte) (QuestionSet, error) {
	if g.primary == nil {
		return FallbackQuestionSet(), nil
	}
	set, err := g.primary.Generate(ctx, jpeg)
	if err != nil {
		g.logger.Warn("question generation failed, using fallback challenge", zap.Error(err))
		return FallbackQuestionSet(), nil
	}
	return set, nil
}

// RejectingMatcher turns matcher failures into a rejected attempt
type RejectingMatcher struct {
	primary AnswerMatcher
	logger  *zap.Logger
}

func NewRejectingMatcher(primary AnswerMatcher, logger *zap.Logger) *RejectingMatcher {
	return &RejectingMatcher{primary: primary, logger: logger}
}

func (m *RejectingMatcher) Match(ctx context.Context, questions, given, reference []string) (bool, error) {
	ok, err := m.primary.Match(ctx, questions, given, reference)
	if err != nil {
		m.logger.Warn("answer matching failed, treating attempt as incorrect", zap.Error(err))
		return false, nil
	}
	return ok, nil
}
