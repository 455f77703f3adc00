package domain

import "strings"

// StarterPrefix marks the immutable template boards that ship with the
// system. They can be read by anyone but never mutated, not even by admins.
const StarterPrefix = "starter-"

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
)

// Board is an ordered collection of communication cards owned by one user.
type Board struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	IsPublic     bool   `json:"isPublic"`
	CreatedAt    int64  `json:"createdAt"`
	CreatorName  string `json:"creatorName,omitempty"`
	CreatorImage string `json:"creatorImage,omitempty"`
}

// IsStarter reports whether the board is a read-only starter template.
func (b Board) IsStarter() bool { return strings.HasPrefix(b.ID, StarterPrefix) }

// Card is a single labelled cell on a board. Cards derived from a shared
// template carry TemplateKey and may leave label and media fields empty;
// they are resolved by template lookup at render time.
type Card struct {
	ID          string `json:"id"`
	BoardID     string `json:"boardId"`
	Label       string `json:"label,omitempty"`
	Image       string `json:"image,omitempty"`
	Audio       string `json:"audio,omitempty"`
	Color       string `json:"color,omitempty"`
	TemplateKey string `json:"templateKey,omitempty"`
	Order       int    `json:"order"`
}

// CardInput carries the caller-settable fields for card creation.
type CardInput struct {
	Label       string `json:"label,omitempty"`
	Image       string `json:"image,omitempty"`
	Audio       string `json:"audio,omitempty"`
	Color       string `json:"color,omitempty"`
	TemplateKey string `json:"templateKey,omitempty"`
}

// CardPosition pairs a card with its submitted position in a reorder.
type CardPosition struct {
	CardID   string `json:"cardId"`
	Position int    `json:"position"`
}

func validateBoardInput(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError{Field: "name", Msg: "is required"}
	}
	if len(name) > maxNameLen {
		return ValidationError{Field: "name", Msg: "must be at most 100 characters"}
	}
	if len(description) > maxDescriptionLen {
		return ValidationError{Field: "description", Msg: "must be at most 500 characters"}
	}
	return nil
}

func validateCardInput(in CardInput) error {
	if in.TemplateKey == "" && strings.TrimSpace(in.Label) == "" {
		return ValidationError{Field: "label", Msg: "is required for non-template cards"}
	}
	if len(in.Label) > maxNameLen {
		return ValidationError{Field: "label", Msg: "must be at most 100 characters"}
	}
	return nil
}
