package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence collaborator for boards, cards and settings. It
// is expected to provide atomic single-row upserts; WriteCardOrder persists
// the submitted pairs as one logical unit with last-write-wins semantics
// across concurrent callers.
type Store interface {
	GetBoard(ctx context.Context, id string) (*Board, error)
	InsertBoard(ctx context.Context, b Board) error
	ListBoardsByOwner(ctx context.Context, ownerID string) ([]Board, error)
	ListPublicBoards(ctx context.Context) ([]Board, error)
	CountBoards(ctx context.Context, ownerID string) (int, error)

	ListCards(ctx context.Context, boardID string) ([]Card, error)
	InsertCard(ctx context.Context, c Card) error
	WriteCardOrder(ctx context.Context, boardID string, order []CardPosition) error

	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, s AppSetting) error
	ListSettings(ctx context.Context) ([]AppSetting, error)
}

// SettingsView pairs current stored settings with their allowed-range
// schema for the admin surface.
type SettingsView struct {
	Settings []AppSetting  `json:"settings"`
	Schema   []SettingSpec `json:"schema"`
}

// BoardService orchestrates authorization, limit enforcement and ordering
// over the persistence collaborator.
type BoardService struct {
	store    Store
	access   *Access
	limits   *Limits
	identity Identity

	now   func() time.Time
	newID func() string
}

func NewBoardService(store Store, access *Access, limits *Limits, identity Identity) *BoardService {
	return &BoardService{
		store:    store,
		access:   access,
		limits:   limits,
		identity: identity,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type countResult struct {
	n   int
	err error
}

// CreateBoard creates a board owned by the actor, enforcing the effective
// max-boards-per-user limit. The board count and the limit resolution are
// independent reads and run concurrently. Creator display fields come from
// a best-effort profile lookup; enrichment failures never fail the create.
func (s *BoardService) CreateBoard(ctx context.Context, actor Actor, name, description string, isPublic bool) (*Board, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthenticated
	}

	countCh := make(chan countResult, 1)
	go func() {
		n, err := s.store.CountBoards(ctx, actor.ID)
		countCh <- countResult{n: n, err: err}
	}()
	max := s.limits.Resolve(ctx, SettingMaxBoardsPerUser)
	count := <-countCh
	if count.err != nil {
		return nil, fmt.Errorf("count boards: %w", count.err)
	}
	if count.n >= max {
		return nil, LimitExceededError{Limit: string(SettingMaxBoardsPerUser), Max: max}
	}

	if err := validateBoardInput(name, description); err != nil {
		return nil, err
	}

	b := Board{
		ID:          s.newID(),
		OwnerID:     actor.ID,
		Name:        strings.TrimSpace(name),
		Description: description,
		IsPublic:    isPublic,
		CreatedAt:   s.now().UnixMilli(),
	}
	if s.identity != nil {
		if p, err := s.identity.Profile(ctx, actor.ID); err == nil {
			b.CreatorName = p.Name
			b.CreatorImage = p.Image
		}
	}
	if err := s.store.InsertBoard(ctx, b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBoards returns the actor's own boards.
func (s *BoardService) ListBoards(ctx context.Context, actor Actor) ([]Board, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthenticated
	}
	return s.store.ListBoardsByOwner(ctx, actor.ID)
}

// ListPublicBoards returns every board flagged public, regardless of owner.
func (s *BoardService) ListPublicBoards(ctx context.Context) ([]Board, error) {
	return s.store.ListPublicBoards(ctx)
}

// GetBoard returns one board and its cards in display order. Boards the
// actor may not view answer exactly like missing boards.
func (s *BoardService) GetBoard(ctx context.Context, actor Actor, boardID string) (*Board, []Card, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, ErrForbidden
	}
	if !s.access.CanView(actor, *b) {
		return nil, nil, ErrForbidden
	}
	cards, err := s.store.ListCards(ctx, boardID)
	if err != nil {
		return nil, nil, err
	}
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
	return b, cards, nil
}

// CreateCard appends a card to the board, enforcing the effective
// max-cards-per-board limit. The new card takes the position after the
// current highest.
func (s *BoardService) CreateCard(ctx context.Context, actor Actor, boardID string, in CardInput) (*Card, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthenticated
	}
	b, err := s.mutableBoard(ctx, actor, boardID)
	if err != nil {
		return nil, err
	}
	cards, err := s.store.ListCards(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	max := s.limits.Resolve(ctx, SettingMaxCardsPerBoard)
	if len(cards) >= max {
		return nil, LimitExceededError{Limit: string(SettingMaxCardsPerBoard), Max: max}
	}
	if err := validateCardInput(in); err != nil {
		return nil, err
	}
	next := 0
	for _, c := range cards {
		if c.Order >= next {
			next = c.Order + 1
		}
	}
	card := Card{
		ID:          s.newID(),
		BoardID:     b.ID,
		Label:       strings.TrimSpace(in.Label),
		Image:       in.Image,
		Audio:       in.Audio,
		Color:       in.Color,
		TemplateKey: in.TemplateKey,
		Order:       next,
	}
	if err := s.store.InsertCard(ctx, card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Reorder validates and persists a full reordering of the board's cards as
// one unit. Nothing is written unless every precondition holds. Cards
// omitted from the submitted set keep their prior relative order, shifted
// after the highest submitted position.
func (s *BoardService) Reorder(ctx context.Context, actor Actor, boardID string, order []CardPosition) error {
	if actor.Anonymous() {
		return ErrUnauthenticated
	}
	if boardID == "" {
		return ValidationError{Field: "boardId", Msg: "is required"}
	}
	if len(order) == 0 {
		return ValidationError{Field: "cardOrders", Msg: "must not be empty"}
	}
	b, err := s.mutableBoard(ctx, actor, boardID)
	if err != nil {
		return err
	}
	cards, err := s.store.ListCards(ctx, b.ID)
	if err != nil {
		return err
	}
	merged, err := mergeOrder(cards, order)
	if err != nil {
		return err
	}
	return s.store.WriteCardOrder(ctx, b.ID, merged)
}

// mutableBoard loads the board and applies the mutate gate. Missing boards
// and denied access produce the same ErrForbidden so existence never leaks.
func (s *BoardService) mutableBoard(ctx context.Context, actor Actor, boardID string) (*Board, error) {
	b, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrForbidden
	}
	ok, err := s.access.CanMutate(ctx, actor, *b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return b, nil
}

// mergeOrder validates the submitted pairs against the board's current
// cards and produces the complete position set to persist.
func mergeOrder(cards []Card, submitted []CardPosition) ([]CardPosition, error) {
	existing := make(map[string]bool, len(cards))
	for _, c := range cards {
		existing[c.ID] = true
	}

	seenCard := make(map[string]bool, len(submitted))
	seenPos := make(map[int]bool, len(submitted))
	maxPos := -1
	for _, cp := range submitted {
		if !existing[cp.CardID] {
			return nil, ValidationError{Field: "cardOrders", Msg: "references a card not on this board"}
		}
		if seenCard[cp.CardID] {
			return nil, ValidationError{Field: "cardOrders", Msg: "lists card " + cp.CardID + " more than once"}
		}
		if cp.Position < 0 {
			return nil, ValidationError{Field: "cardOrders", Msg: "positions must not be negative"}
		}
		if seenPos[cp.Position] {
			return nil, ValidationError{Field: "cardOrders", Msg: "positions must be unique"}
		}
		seenCard[cp.CardID] = true
		seenPos[cp.Position] = true
		if cp.Position > maxPos {
			maxPos = cp.Position
		}
	}

	merged := append([]CardPosition(nil), submitted...)

	var rest []Card
	for _, c := range cards {
		if !seenCard[c.ID] {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Order < rest[j].Order })
	next := maxPos + 1
	for _, c := range rest {
		merged = append(merged, CardPosition{CardID: c.ID, Position: next})
		next++
	}
	return merged, nil
}

// AdminSettings returns the stored settings together with their allow-list
// schema. Admin rights are required.
func (s *BoardService) AdminSettings(ctx context.Context, actor Actor) (*SettingsView, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	stored, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = []AppSetting{}
	}
	return &SettingsView{Settings: stored, Schema: SettingSpecs()}, nil
}

// UpdateSetting validates key/value against the allow-list and writes the
// normalized value. Admin rights are required.
func (s *BoardService) UpdateSetting(ctx context.Context, actor Actor, key, value string) (*AppSetting, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	normalized, err := NormalizeSettingValue(key, value)
	if err != nil {
		return nil, err
	}
	setting := AppSetting{Key: key, Value: normalized, UpdatedAt: s.now().UnixMilli()}
	if err := s.store.PutSetting(ctx, setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

func (s *BoardService) requireAdmin(ctx context.Context, actor Actor) error {
	if actor.Anonymous() {
		return ErrUnauthenticated
	}
	ok, err := s.access.IsAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
