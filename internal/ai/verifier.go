package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	googleoption "google.golang.org/api/option"

	"github.com/oyounis19/beyond-rag/internal/config"
	"github.com/oyounis19/beyond-rag/utils"
)

// LLM is a minimal chat-completion surface. Both the conflict verifier and
// the assistant run on it, so either provider can back either feature.
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewLLM builds the configured provider client.
func NewLLM(ctx context.Context, cfg *config.Config) (LLM, error) {
	switch cfg.VerifierProvider {
	case "gemini":
		return NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		return NewOpenAILLM(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unsupported verifier provider: %s", cfg.VerifierProvider)
	}
}

// GeminiLLM backs LLM with the Gemini API.
type GeminiLLM struct {
	client *genai.Client
	model  string
}

func NewGeminiLLM(ctx context.Context, apiKey, model string) (*GeminiLLM, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(apiKey))
	if err != nil {
		return nil, utils.WrapError(utils.KindModel, "create gemini client", err)
	}
	return &GeminiLLM{client: client, model: model}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, system, user string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", utils.WrapError(utils.KindModel, "gemini generate", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", utils.NewError(utils.KindModel, "gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// OpenAILLM backs LLM with the OpenAI chat completions API.
type OpenAILLM struct {
	client openai.Client
	model  string
}

func NewOpenAILLM(apiKey, model string) *OpenAILLM {
	return &OpenAILLM{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *OpenAILLM) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", utils.WrapError(utils.KindModel, "openai generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", utils.NewError(utils.KindModel, "openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Verdict labels as emitted by the model.
const (
	VerdictContradiction = "CONTRADICTION"
	VerdictEntailment    = "ENTAILMENT"
	VerdictNeutral       = "NEUTRAL"
)

// VerdictReasoning is the model's structured chain of comparison.
type VerdictReasoning struct {
	Chunk1Summary string `json:"chunk1_summary"`
	Chunk2Summary string `json:"chunk2_summary"`
	Comparison    string `json:"comparison"`
	Conclusion    string `json:"conclusion"`
}

// Verdict is the verifier's answer for one chunk pair.
type Verdict struct {
	Reasoning VerdictReasoning `json:"reasoning"`
	Label     string           `json:"label"`
}

// Verifier escalates ambiguous chunk pairs to an LLM for adjudication.
type Verifier struct {
	llm     LLM
	timeout time.Duration
}

func NewVerifier(llm LLM, timeout time.Duration) *Verifier {
	return &Verifier{llm: llm, timeout: timeout}
}

// Judge classifies the relationship between two chunks. Model output passes
// through JSON repair before parsing since providers occasionally wrap the
// object in fences or prose despite instructions.
func (v *Verifier) Judge(ctx context.Context, chunk1, chunk2 string) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	raw, err := v.llm.Complete(ctx, conflictSystemPrompt, conflictUserPrompt(chunk1, chunk2))
	if err != nil {
		return nil, err
	}

	repaired := utils.RepairJSON(raw)

	var verdict Verdict
	if err := json.Unmarshal([]byte(repaired), &verdict); err != nil {
		return nil, utils.WrapError(utils.KindModel, "parse verifier output", err)
	}

	verdict.Label = strings.ToUpper(strings.TrimSpace(verdict.Label))
	switch verdict.Label {
	case VerdictContradiction, VerdictEntailment, VerdictNeutral:
		return &verdict, nil
	default:
		return nil, utils.NewError(utils.KindModel,
			fmt.Sprintf("verifier returned unknown label: %q", verdict.Label))
	}
}
