package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/wellbeing-chat/internal/llm"
	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

const recipePrompt = "You are a helpful cooking assistant. Given a list of ingredients, suggest one recipe. " +
	`Respond with a single JSON object with exactly two string fields: "preparationMethod" ` +
	`(numbered preparation steps) and "nutritionalInformation" (approximate calories and macronutrients per serving). ` +
	"Do not wrap the JSON in markdown."

type Recipe struct {
	PreparationMethod      string `json:"preparationMethod"`
	NutritionalInformation string `json:"nutritionalInformation"`
}

// RecipeService turns free-form ingredient text into a recipe. Nothing is persisted.
type RecipeService struct {
	llm    Completer
	logger *zap.Logger
}

func NewRecipeService(completer Completer, logger *zap.Logger) *RecipeService {
	return &RecipeService{llm: completer, logger: utils.LoggerOrNop(logger)}
}

func (s *RecipeService) Generate(ctx context.Context, ingredients string) (*Recipe, error) {
	ingredients = strings.TrimSpace(ingredients)
	if ingredients == "" {
		return nil, ErrInvalidRequest
	}

	reply, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: recipePrompt},
		{Role: llm.RoleUser, Content: ingredients},
	})
	if err != nil {
		s.logger.Error("recipe completion failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return ParseRecipe(reply), nil
}

// ParseRecipe reads the two recipe fields from a JSON reply, tolerating a
// markdown code fence. Non-JSON replies become the preparation method.
func ParseRecipe(reply string) *Recipe {
	body := stripCodeFence(reply)
	if gjson.Valid(body) {
		parsed := gjson.Parse(body)
		method := parsed.Get("preparationMethod")
		if method.Exists() {
			return &Recipe{
				PreparationMethod:      strings.TrimSpace(flatten(method)),
				NutritionalInformation: strings.TrimSpace(flatten(parsed.Get("nutritionalInformation"))),
			}
		}
	}

	return &Recipe{PreparationMethod: strings.TrimSpace(reply)}
}

// flatten joins array values line by line; models sometimes return steps as a list.
func flatten(value gjson.Result) string {
	if !value.IsArray() {
		return value.String()
	}
	lines := make([]string, 0, len(value.Array()))
	for _, item := range value.Array() {
		lines = append(lines, item.String())
	}
	return strings.Join(lines, "\n")
}

func stripCodeFence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
