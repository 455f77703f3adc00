package api

import (
	"context"

	"commboard-api/domain"
)

// Boards is the slice of the board service the handlers need.
type Boards interface {
	CreateBoard(ctx context.Context, actor domain.Actor, name, description string, isPublic bool) (*domain.Board, error)
	ListBoards(ctx context.Context, actor domain.Actor) ([]domain.Board, error)
	ListPublicBoards(ctx context.Context) ([]domain.Board, error)
	GetBoard(ctx context.Context, actor domain.Actor, boardID string) (*domain.Board, []domain.Card, error)
	CreateCard(ctx context.Context, actor domain.Actor, boardID string, in domain.CardInput) (*domain.Card, error)
	Reorder(ctx context.Context, actor domain.Actor, boardID string, order []domain.CardPosition) error
	AdminSettings(ctx context.Context, actor domain.Actor) (*domain.SettingsView, error)
	UpdateSetting(ctx context.Context, actor domain.Actor, key, value string) (*domain.AppSetting, error)
}

// Authenticator is implemented by types able to derive an actor from an
// Authorization header.
type Authenticator interface {
	ActorFromAuthHeader(string) (domain.Actor, error)
}

// Deduper prevents replays of retried create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}

// EventSink receives board-change events for downstream consumers.
type EventSink interface {
	EnqueueBoardEvent(ctx context.Context, ev domain.BoardEvent) error
}
