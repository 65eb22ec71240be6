package service

import (
	"context"
	"log/slog"
	"strings"

	"plume/internal/featureflags"
	"plume/internal/llm"
	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/repository"
)

// Messages of the improvement endpoint.
const (
	MsgNoTextToImprove    = "Aucun texte à améliorer."
	MsgAIEmpty            = "Réponse IA vide"
	MsgAIRateLimited      = "Limite de débit atteinte"
	MsgAIUnavailable      = "Service IA temporairement indisponible"
	MsgAITimeout          = "Le service IA a mis trop de temps à répondre"
	MsgAIInternal         = "Erreur interne IA"
)

// SuggestionInput optionally overrides the text to rewrite. A nil Text uses
// the post content.
type SuggestionInput struct {
	Text *string `json:"text"`
}

// SuggestionService rewrites post content through the language model.
type SuggestionService struct {
	posts     repository.PostRepository
	completer llm.Completer
	flags     *featureflags.Manager
}

func NewSuggestionService(posts repository.PostRepository, completer llm.Completer, flags *featureflags.Manager) *SuggestionService {
	return &SuggestionService{posts: posts, completer: completer, flags: flags}
}

// Improve returns the rewritten text for one of actor's posts.
func (s *SuggestionService) Improve(ctx context.Context, actor *models.User, postID uint, in SuggestionInput) (string, error) {
	if actor == nil || !s.flags.Enabled(featureflags.AISuggestions, actor.ID) {
		return "", &models.AppError{Code: models.CodeNotFound, Message: MsgPostNotFound}
	}
	if CanCreatePost(actor) != Allow {
		return "", models.NewForbiddenError(MsgSuggestionsForbidden)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return "", postNotFound(err)
	}
	if err := decisionError(CanRequestSuggestions(actor, post), MsgSuggestionsForbidden); err != nil {
		return "", err
	}

	text := post.Content
	if in.Text != nil {
		text = *in.Text
	}
	if strings.TrimSpace(text) == "" {
		return "", models.NewFieldValidationError("text", MsgNoTextToImprove)
	}

	safe, truncated, err := llm.Truncate(text, llm.MaxInputTokens)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if truncated {
		middleware.Logger.InfoContext(ctx, "suggestion input truncated",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.Int("max_tokens", llm.MaxInputTokens),
		)
	}

	raw, err := s.completer.Complete(ctx, llm.ImprovementPrompt(safe))
	if err != nil {
		return "", suggestionError(ctx, err)
	}
	rewritten := llm.PlainText(raw)
	if rewritten == "" {
		return "", suggestionError(ctx, &llm.Error{Outcome: llm.OutcomeEmpty, Err: llm.ErrEmptyCompletion})
	}
	return rewritten, nil
}

// suggestionError maps an upstream failure onto the response the caller sees.
func suggestionError(ctx context.Context, err error) error {
	failure := llm.Classify(err)
	middleware.Logger.ErrorContext(ctx, "suggestion failed",
		slog.String("outcome", failure.Outcome.String()),
		slog.String("error", err.Error()),
	)

	switch failure.Outcome {
	case llm.OutcomeEmpty:
		return models.NewUpstreamError(MsgAIEmpty, err)
	case llm.OutcomeRateLimited:
		rl := models.NewRateLimitedError(MsgAIRateLimited, failure.RetryAfter)
		rl.Err = err
		return rl
	case llm.OutcomeTimeout:
		return models.NewUpstreamTimeoutError(MsgAITimeout, err)
	case llm.OutcomeUpstream:
		return models.NewUpstreamError(MsgAIUnavailable, err)
	default:
		return &models.AppError{Code: models.CodeInternal, Message: MsgAIInternal, Err: err}
	}
}
