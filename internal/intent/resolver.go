// File: internal/intent/resolver.go
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// IntentInferrer is the optional language-model collaborator consulted for
// instructions the pattern table cannot classify.
type IntentInferrer interface {
	InferIntent(ctx context.Context, instruction string) (schemas.IntentDescriptor, error)
}

// Resolver combines the deterministic normalizer with the optional LLM
// fallback. The pure pattern path never fails; LLM failures degrade to the
// pattern result rather than erroring the caller.
type Resolver struct {
	logger   *zap.Logger
	inferrer IntentInferrer
}

// NewResolver builds a resolver. inferrer may be nil, in which case the
// pattern table is the whole story.
func NewResolver(logger *zap.Logger, inferrer IntentInferrer) *Resolver {
	return &Resolver{
		logger:   logger.Named("intent"),
		inferrer: inferrer,
	}
}

// Resolve normalizes an instruction, consulting the inferrer only when the
// patterns produced the generic interact kind.
func (r *Resolver) Resolve(ctx context.Context, instruction string) schemas.IntentDescriptor {
	desc := Normalize(instruction)
	if desc.Kind != schemas.ActionInteract || r.inferrer == nil {
		return desc
	}

	inferred, err := r.inferrer.InferIntent(ctx, instruction)
	if err != nil {
		r.logger.Warn("Intent inference failed; keeping pattern result",
			zap.String("instruction", instruction), zap.Error(err))
		return desc
	}
	r.logger.Debug("Intent inferred by language model",
		zap.String("kind", string(inferred.Kind)),
		zap.String("target", inferred.TargetDescription))
	return inferred
}

// -- Gemini-backed inferrer --

const inferSystemPrompt = `You classify browser automation instructions.
Respond with a single JSON object and nothing else:
{"kind": one of ["navigate","click","type","select","extract","wait","scroll","screenshot"],
 "target_description": short description of the element or page acted on,
 "context_flags": subset of ["login","search","form","submit","travel","shopping","payment"]}`

// GeminiInferrer asks a Gemini model for a structured IntentDescriptor.
type GeminiInferrer struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiInferrer initializes the Gemini intent collaborator.
func NewGeminiInferrer(ctx context.Context, cfg config.IntentConfig, logger *zap.Logger) (*GeminiInferrer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiInferrer{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("intent.gemini"),
	}, nil
}

// InferIntent implements IntentInferrer.
func (g *GeminiInferrer) InferIntent(ctx context.Context, instruction string) (schemas.IntentDescriptor, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(inferSystemPrompt+"\n\nInstruction: "+instruction),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		})
	if err != nil {
		return schemas.IntentDescriptor{}, fmt.Errorf("generate content: %w", err)
	}

	return parseInferredIntent(resp.Text())
}

// parseInferredIntent validates the model's JSON answer and maps it onto
// the descriptor. Unknown kinds or flags are rejected rather than guessed.
func parseInferredIntent(raw string) (schemas.IntentDescriptor, error) {
	var payload struct {
		Kind              string   `json:"kind"`
		TargetDescription string   `json:"target_description"`
		ContextFlags      []string `json:"context_flags"`
	}

	raw = strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return schemas.IntentDescriptor{}, fmt.Errorf("unparseable intent response: %w", err)
	}

	kind := schemas.ActionKind(payload.Kind)
	switch kind {
	case schemas.ActionNavigate, schemas.ActionClick, schemas.ActionType,
		schemas.ActionSelect, schemas.ActionExtract, schemas.ActionWait,
		schemas.ActionScroll, schemas.ActionScreenshot:
	default:
		return schemas.IntentDescriptor{}, fmt.Errorf("unknown action kind %q in intent response", payload.Kind)
	}

	flags := make(map[schemas.ContextFlag]bool)
	for _, f := range payload.ContextFlags {
		flag := schemas.ContextFlag(f)
		if _, ok := flagKeywords[flag]; ok {
			flags[flag] = true
		}
	}

	return schemas.IntentDescriptor{
		Kind:              kind,
		TargetDescription: cleanTarget(payload.TargetDescription),
		ContextFlags:      flags,
	}, nil
}
