package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"commboard-api/domain"
)

type mockBoards struct {
	boards       []domain.Board
	publicBoards []domain.Board
	board        *domain.Board
	cards        []domain.Card
	card         *domain.Card
	view         *domain.SettingsView
	setting      *domain.AppSetting
	err          error

	lastReorderBoard string
	lastReorder      []domain.CardPosition
}

func (m *mockBoards) CreateBoard(ctx context.Context, actor domain.Actor, name, description string, isPublic bool) (*domain.Board, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.board, nil
}

func (m *mockBoards) ListBoards(ctx context.Context, actor domain.Actor) ([]domain.Board, error) {
	return m.boards, m.err
}

func (m *mockBoards) ListPublicBoards(ctx context.Context) ([]domain.Board, error) {
	return m.publicBoards, m.err
}

func (m *mockBoards) GetBoard(ctx context.Context, actor domain.Actor, boardID string) (*domain.Board, []domain.Card, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.board, m.cards, nil
}

func (m *mockBoards) CreateCard(ctx context.Context, actor domain.Actor, boardID string, in domain.CardInput) (*domain.Card, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.card, nil
}

func (m *mockBoards) Reorder(ctx context.Context, actor domain.Actor, boardID string, order []domain.CardPosition) error {
	m.lastReorderBoard = boardID
	m.lastReorder = order
	return m.err
}

func (m *mockBoards) AdminSettings(ctx context.Context, actor domain.Actor) (*domain.SettingsView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func (m *mockBoards) UpdateSetting(ctx context.Context, actor domain.Actor, key, value string) (*domain.AppSetting, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.setting, nil
}

type mockAuth struct{ err error }

func (m mockAuth) ActorFromAuthHeader(string) (domain.Actor, error) {
	if m.err != nil {
		return domain.Actor{}, m.err
	}
	return domain.Actor{ID: "user"}, nil
}

type fakeDeduper struct {
	added   map[string]bool
	removed []string
}

func (f *fakeDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	if f.added == nil {
		f.added = map[string]bool{}
	}
	if f.added[key] {
		return false, nil
	}
	f.added[key] = true
	return true, nil
}

func (f *fakeDeduper) Remove(ctx context.Context, userID, key string) error {
	delete(f.added, key)
	f.removed = append(f.removed, key)
	return nil
}

func newTestContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer a.b.c")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetBoardsReturnsOwnBoards(t *testing.T) {
	store := &mockBoards{boards: []domain.Board{{ID: "b1", OwnerID: "user", Name: "Phrases"}}}
	c, rec := newTestContext(http.MethodGet, "/api/boards", "")

	if err := getBoards(store, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var boards []domain.Board
	if err := sonic.Unmarshal(rec.Body.Bytes(), &boards); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(boards) != 1 || boards[0].ID != "b1" {
		t.Fatalf("unexpected boards: %#v", boards)
	}
}

func TestGetBoardsUnauthorized(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/api/boards", "")
	if err := getBoards(&mockBoards{}, mockAuth{err: errors.New("bad token")}, log.New())(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPostBoardCreated(t *testing.T) {
	store := &mockBoards{board: &domain.Board{ID: "b1", OwnerID: "user", Name: "Phrases"}}
	c, rec := newTestContext(http.MethodPost, "/api/boards", `{"name":"Phrases"}`)
	c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	if err := postBoard(store, mockAuth{}, nil)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestPostBoardLimitExceeded(t *testing.T) {
	store := &mockBoards{err: domain.LimitExceededError{Limit: "max_boards_per_user", Max: 5}}
	c, rec := newTestContext(http.MethodPost, "/api/boards", `{"name":"Phrases"}`)

	if err := postBoard(store, mockAuth{}, nil)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
	var resp limitResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Limit != "max_boards_per_user" || resp.Max != 5 {
		t.Fatalf("unexpected limit body: %#v", resp)
	}
}

func TestPostBoardValidationFailure(t *testing.T) {
	store := &mockBoards{err: domain.ValidationError{Field: "name", Msg: "is required"}}
	c, rec := newTestContext(http.MethodPost, "/api/boards", `{"name":""}`)

	if err := postBoard(store, mockAuth{}, nil)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPostBoardUnknownFieldRejected(t *testing.T) {
	store := &mockBoards{board: &domain.Board{ID: "b1"}}
	c, rec := newTestContext(http.MethodPost, "/api/boards", `{"name":"x","nope":true}`)

	if err := postBoard(store, mockAuth{}, nil)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPostBoardIdempotencyReplayConflicts(t *testing.T) {
	store := &mockBoards{board: &domain.Board{ID: "b1"}}
	deduper := &fakeDeduper{}

	c, rec := newTestContext(http.MethodPost, "/api/boards", `{"name":"Phrases"}`)
	c.Request().Header.Set("Idempotency-Key", "k1")
	if err := postBoard(store, mockAuth{}, deduper)(c); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("first status: %d", rec.Code)
	}

	c2, rec2 := newTestContext(http.MethodPost, "/api/boards", `{"name":"Phrases"}`)
	c2.Request().Header.Set("Idempotency-Key", "k1")
	if err := postBoard(store, mockAuth{}, deduper)(c2); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rec2.Code != http.StatusConflict {
		t.Fatalf("replay status: %d", rec2.Code)
	}
}

func TestPostBoardFailureRollsBackIdempotencyKey(t *testing.T) {
	store := &mockBoards{err: domain.ValidationError{Field: "name", Msg: "is required"}}
	deduper := &fakeDeduper{}

	c, rec := newTestContext(http.MethodPost, "/api/boards", `{"name":""}`)
	c.Request().Header.Set("Idempotency-Key", "k1")
	if err := postBoard(store, mockAuth{}, deduper)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	if len(deduper.removed) != 1 || deduper.removed[0] != "k1" {
		t.Fatalf("expected key rollback, got %#v", deduper.removed)
	}
}

func TestGetPublicBoardsWithoutAuth(t *testing.T) {
	store := &mockBoards{publicBoards: []domain.Board{{ID: "b1", IsPublic: true}}}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/boards/public", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := getPublicBoards(store)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestGetBoardAnonymousAllowed(t *testing.T) {
	store := &mockBoards{
		board: &domain.Board{ID: "b1", IsPublic: true},
		cards: []domain.Card{{ID: "c1", BoardID: "b1", Label: "yes"}},
	}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/boards/b1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("b1")

	// The auth stub would fail; no header means it must not be consulted.
	if err := getBoard(store, mockAuth{err: errors.New("boom")})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestGetBoardForbiddenNotLeaking(t *testing.T) {
	store := &mockBoards{err: domain.ErrForbidden}
	c, rec := newTestContext(http.MethodGet, "/api/boards/secret", "")
	c.SetParamNames("id")
	c.SetParamValues("secret")

	if err := getBoard(store, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unauthorized access to board") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestPutReorderSuccess(t *testing.T) {
	store := &mockBoards{}
	body := `{"boardId":"b1","cardOrders":[{"cardId":"c2","position":0},{"cardId":"c1","position":1}]}`
	c, rec := newTestContext(http.MethodPut, "/api/cards/reorder", body)

	if err := putReorder(store, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp reorderResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success true")
	}
	if store.lastReorderBoard != "b1" || len(store.lastReorder) != 2 {
		t.Fatalf("unexpected reorder call: %q %#v", store.lastReorderBoard, store.lastReorder)
	}
}

func TestPutReorderForbidden(t *testing.T) {
	store := &mockBoards{err: domain.ErrForbidden}
	body := `{"boardId":"starter-basics","cardOrders":[{"cardId":"c1","position":0}]}`
	c, rec := newTestContext(http.MethodPut, "/api/cards/reorder", body)

	if err := putReorder(store, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPutReorderMalformedBody(t *testing.T) {
	c, rec := newTestContext(http.MethodPut, "/api/cards/reorder", `{"boardId":`)
	if err := putReorder(&mockBoards{}, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPutReorderUnauthenticated(t *testing.T) {
	c, rec := newTestContext(http.MethodPut, "/api/cards/reorder", `{}`)
	if err := putReorder(&mockBoards{}, mockAuth{err: errors.New("bad token")})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPostCardCreated(t *testing.T) {
	store := &mockBoards{card: &domain.Card{ID: "c1", BoardID: "b1", Label: "yes", Order: 0}}
	c, rec := newTestContext(http.MethodPost, "/api/boards/b1/cards", `{"label":"yes"}`)
	c.SetParamNames("id")
	c.SetParamValues("b1")

	if err := postCard(store, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSettingsForbiddenForNonAdmin(t *testing.T) {
	store := &mockBoards{err: domain.ErrForbidden}
	c, rec := newTestContext(http.MethodGet, "/api/admin/settings", "")

	if err := getAdminSettings(store, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPutAdminSettingStoresNormalizedValue(t *testing.T) {
	store := &mockBoards{setting: &domain.AppSetting{Key: "max_boards_per_user", Value: "25", UpdatedAt: 1}}
	c, rec := newTestContext(http.MethodPut, "/api/admin/settings", `{"key":"max_boards_per_user","value":" 25 "}`)

	if err := putAdminSetting(store, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var resp domain.AppSetting
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Value != "25" {
		t.Fatalf("unexpected value %q", resp.Value)
	}
}

func TestPutAdminSettingInvalidKey(t *testing.T) {
	store := &mockBoards{err: domain.ValidationError{Field: "key", Msg: "is not a recognized setting"}}
	c, rec := newTestContext(http.MethodPut, "/api/admin/settings", `{"key":"theme","value":"1"}`)

	if err := putAdminSetting(store, mockAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestWriteServiceErrorHidesInternalDetail(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/api/boards", "")
	if err := writeServiceError(c, errors.New("aztables: connection refused")); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "aztables") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}
