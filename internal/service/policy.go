package service

import "plume/internal/models"

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Allow lets the action proceed.
	Allow Decision = iota
	// Forbid rejects the action with 403.
	Forbid
	// Hide rejects the action as if the resource did not exist (404).
	Hide
)

// Messages of denied content actions.
const (
	MsgCreateForbidden      = "Vous n’êtes pas autorisé à créer un post."
	MsgUpdateForbidden      = "Vous n’êtes pas autorisé à modifier ce post."
	MsgSuggestionsForbidden = "Vous n’êtes pas autorisé à utiliser l’assistant IA."
)

// CanCreatePost allows staff members.
func CanCreatePost(actor *models.User) Decision {
	if actor == nil || !actor.IsStaff {
		return Forbid
	}
	return Allow
}

// CanEditPost allows the post's author, if still staff, and superusers.
func CanEditPost(actor *models.User, post *models.Post) Decision {
	if actor == nil || post == nil {
		return Forbid
	}
	if actor.IsSuperuser {
		return Allow
	}
	if !actor.IsStaff || post.AuthorID != actor.ID {
		return Forbid
	}
	return Allow
}

// CanRequestSuggestions allows staff on their own posts. Posts of other
// authors are hidden.
func CanRequestSuggestions(actor *models.User, post *models.Post) Decision {
	if actor == nil || !actor.IsStaff {
		return Forbid
	}
	if post == nil || post.AuthorID != actor.ID {
		return Hide
	}
	return Allow
}

// decisionError converts a denial into the matching AppError.
func decisionError(d Decision, message string) error {
	switch d {
	case Allow:
		return nil
	case Hide:
		return &models.AppError{Code: models.CodeNotFound, Message: MsgPostNotFound}
	default:
		return models.NewForbiddenError(message)
	}
}
