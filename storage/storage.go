package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"commboard-api/domain"
)

// Table batches are capped by the service at 100 entities per transaction.
const maxBatchSize = 100

// Storage provides access to the underlying persistence mechanisms: one
// table per entity kind plus the board-event queue.
type Storage struct {
	boardTable    *aztables.Client
	cardTable     *aztables.Client
	settingsTable *aztables.Client
	userTable     *aztables.Client
	eventQueue    *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, boardsTable, cardsTable, settingsTable, usersTable, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		boardTable:    svc.NewClient(boardsTable),
		cardTable:     svc.NewClient(cardsTable),
		settingsTable: svc.NewClient(settingsTable),
		userTable:     svc.NewClient(usersTable),
		eventQueue:    eq,
	}, nil
}

// Boards are keyed PartitionKey == RowKey == board id so a single GetEntity
// resolves any board; owner and public listings use property filters.
type boardEntity struct {
	aztables.Entity
	OwnerID       string `json:"OwnerId"`
	Name          string `json:"Name"`
	Description   string `json:"Description,omitempty"`
	IsPublic      bool   `json:"IsPublic"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
	CreatorName   string `json:"CreatorName,omitempty"`
	CreatorImage  string `json:"CreatorImage,omitempty"`
}

func boardToEntity(b domain.Board) boardEntity {
	return boardEntity{
		Entity:        aztables.Entity{PartitionKey: b.ID, RowKey: b.ID},
		OwnerID:       b.OwnerID,
		Name:          b.Name,
		Description:   b.Description,
		IsPublic:      b.IsPublic,
		CreatedAt:     b.CreatedAt,
		CreatedAtType: "Edm.Int64",
		CreatorName:   b.CreatorName,
		CreatorImage:  b.CreatorImage,
	}
}

func (e boardEntity) toBoard() domain.Board {
	return domain.Board{
		ID:           e.RowKey,
		OwnerID:      e.OwnerID,
		Name:         e.Name,
		Description:  e.Description,
		IsPublic:     e.IsPublic,
		CreatedAt:    e.CreatedAt,
		CreatorName:  e.CreatorName,
		CreatorImage: e.CreatorImage,
	}
}

// Cards are keyed PartitionKey == board id, RowKey == card id so a whole
// board's order can be rewritten in one transaction batch.
type cardEntity struct {
	aztables.Entity
	Label       string `json:"Label,omitempty"`
	Image       string `json:"Image,omitempty"`
	Audio       string `json:"Audio,omitempty"`
	Color       string `json:"Color,omitempty"`
	TemplateKey string `json:"TemplateKey,omitempty"`
	Order       int    `json:"Order"`
}

type cardOrderUpdate struct {
	aztables.Entity
	Order int `json:"Order"`
}

type settingEntity struct {
	aztables.Entity
	Value         string `json:"Value"`
	UpdatedAt     int64  `json:"UpdatedAt,string"`
	UpdatedAtType string `json:"UpdatedAt@odata.type"`
}

type userEntity struct {
	aztables.Entity
	Handle string `json:"Handle,omitempty"`
	Name   string `json:"Name,omitempty"`
	Image  string `json:"Image,omitempty"`
	Email  string `json:"Email,omitempty"`
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

// GetBoard retrieves one board, nil when absent.
func (s *Storage) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	ent, err := s.boardTable.GetEntity(ctx, id, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var raw boardEntity
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return nil, err
	}
	b := raw.toBoard()
	return &b, nil
}

// InsertBoard creates or replaces a board row.
func (s *Storage) InsertBoard(ctx context.Context, b domain.Board) error {
	payload, err := json.Marshal(boardToEntity(b))
	if err == nil {
		_, err = s.boardTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

func (s *Storage) listBoards(ctx context.Context, filter string) ([]domain.Board, error) {
	pager := s.boardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	boards := []domain.Board{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent boardEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			boards = append(boards, ent.toBoard())
		}
	}
	return boards, nil
}

// ListBoardsByOwner retrieves all boards owned by the given user.
func (s *Storage) ListBoardsByOwner(ctx context.Context, ownerID string) ([]domain.Board, error) {
	return s.listBoards(ctx, "OwnerId eq '"+escapeODataString(ownerID)+"'")
}

// ListPublicBoards retrieves every board flagged public.
func (s *Storage) ListPublicBoards(ctx context.Context) ([]domain.Board, error) {
	return s.listBoards(ctx, "IsPublic eq true")
}

// CountBoards returns the number of boards owned by the given user.
func (s *Storage) CountBoards(ctx context.Context, ownerID string) (int, error) {
	filter := "OwnerId eq '" + escapeODataString(ownerID) + "'"
	sel := "PartitionKey"
	pager := s.boardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Select: &sel})
	n := 0
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		n += len(resp.Entities)
	}
	return n, nil
}

// ListCards retrieves all cards on the given board.
func (s *Storage) ListCards(ctx context.Context, boardID string) ([]domain.Card, error) {
	filter := "PartitionKey eq '" + escapeODataString(boardID) + "'"
	pager := s.cardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cards := []domain.Card{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent cardEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			cards = append(cards, domain.Card{
				ID:          ent.RowKey,
				BoardID:     ent.PartitionKey,
				Label:       ent.Label,
				Image:       ent.Image,
				Audio:       ent.Audio,
				Color:       ent.Color,
				TemplateKey: ent.TemplateKey,
				Order:       ent.Order,
			})
		}
	}
	return cards, nil
}

// InsertCard creates or replaces a card row.
func (s *Storage) InsertCard(ctx context.Context, c domain.Card) error {
	ent := cardEntity{
		Entity:      aztables.Entity{PartitionKey: c.BoardID, RowKey: c.ID},
		Label:       c.Label,
		Image:       c.Image,
		Audio:       c.Audio,
		Color:       c.Color,
		TemplateKey: c.TemplateKey,
		Order:       c.Order,
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.cardTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// WriteCardOrder persists the full position set for a board as transaction
// batches on the board's partition. Orders beyond the batch ceiling are
// split into consecutive chunks sharing the same last-write-wins contract
// as the whole operation.
func (s *Storage) WriteCardOrder(ctx context.Context, boardID string, order []domain.CardPosition) error {
	for _, chunk := range chunkOrder(order, maxBatchSize) {
		actions := make([]aztables.TransactionAction, 0, len(chunk))
		for _, cp := range chunk {
			upd := cardOrderUpdate{
				Entity: aztables.Entity{PartitionKey: boardID, RowKey: cp.CardID},
				Order:  cp.Position,
			}
			payload, err := json.Marshal(upd)
			if err != nil {
				return err
			}
			actions = append(actions, aztables.TransactionAction{
				ActionType: aztables.TransactionTypeUpdateMerge,
				Entity:     payload,
			})
		}
		if _, err := s.cardTable.SubmitTransaction(ctx, actions, nil); err != nil {
			return err
		}
	}
	return nil
}

func chunkOrder(order []domain.CardPosition, size int) [][]domain.CardPosition {
	if size <= 0 || len(order) == 0 {
		return nil
	}
	chunks := make([][]domain.CardPosition, 0, (len(order)+size-1)/size)
	for start := 0; start < len(order); start += size {
		end := start + size
		if end > len(order) {
			end = len(order)
		}
		chunks = append(chunks, order[start:end])
	}
	return chunks
}

// GetSetting retrieves one app setting value, empty string when absent.
func (s *Storage) GetSetting(ctx context.Context, key string) (string, error) {
	ent, err := s.settingsTable.GetEntity(ctx, key, key, nil)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	var raw settingEntity
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return "", err
	}
	return raw.Value, nil
}

// PutSetting creates the setting row on first write and replaces it after.
func (s *Storage) PutSetting(ctx context.Context, setting domain.AppSetting) error {
	ent := settingEntity{
		Entity:        aztables.Entity{PartitionKey: setting.Key, RowKey: setting.Key},
		Value:         setting.Value,
		UpdatedAt:     setting.UpdatedAt,
		UpdatedAtType: "Edm.Int64",
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.settingsTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// ListSettings retrieves every stored app setting.
func (s *Storage) ListSettings(ctx context.Context) ([]domain.AppSetting, error) {
	pager := s.settingsTable.NewListEntitiesPager(nil)
	settings := []domain.AppSetting{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent settingEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			settings = append(settings, domain.AppSetting{Key: ent.RowKey, Value: ent.Value, UpdatedAt: ent.UpdatedAt})
		}
	}
	return settings, nil
}

// Profile resolves a user's display identity from the users table. Missing
// users yield an empty profile rather than an error.
func (s *Storage) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	ent, err := s.userTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Profile{}, nil
		}
		return domain.Profile{}, err
	}
	var raw userEntity
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return domain.Profile{}, err
	}
	p := domain.Profile{Handle: raw.Handle, Name: raw.Name, Image: raw.Image}
	if raw.Email != "" {
		p.Emails = []string{raw.Email}
	}
	return p, nil
}

// EnqueueBoardEvent sends one board-change event to the events queue.
func (s *Storage) EnqueueBoardEvent(ctx context.Context, ev domain.BoardEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// escapeODataString doubles single quotes so caller-supplied ids cannot
// break out of a filter literal.
func escapeODataString(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, v[i])
	}
	return string(out)
}
