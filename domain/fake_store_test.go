package domain

import (
	"context"
	"errors"
	"sort"
)

type fakeStore struct {
	boards   map[string]Board
	cards    map[string]map[string]Card
	settings map[string]AppSetting

	countErr      error
	insertErr     error
	writeOrderErr error

	orderWrites int
}

func (f *fakeStore) GetBoard(ctx context.Context, id string) (*Board, error) {
	b, ok := f.boards[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeStore) InsertBoard(ctx context.Context, b Board) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.boards == nil {
		f.boards = map[string]Board{}
	}
	f.boards[b.ID] = b
	return nil
}

func (f *fakeStore) ListBoardsByOwner(ctx context.Context, ownerID string) ([]Board, error) {
	var out []Board
	for _, b := range f.boards {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListPublicBoards(ctx context.Context) ([]Board, error) {
	var out []Board
	for _, b := range f.boards {
		if b.IsPublic {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CountBoards(ctx context.Context, ownerID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, b := range f.boards {
		if b.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListCards(ctx context.Context, boardID string) ([]Card, error) {
	var out []Card
	for _, c := range f.cards[boardID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) InsertCard(ctx context.Context, c Card) error {
	if f.cards == nil {
		f.cards = map[string]map[string]Card{}
	}
	if f.cards[c.BoardID] == nil {
		f.cards[c.BoardID] = map[string]Card{}
	}
	f.cards[c.BoardID][c.ID] = c
	return nil
}

func (f *fakeStore) WriteCardOrder(ctx context.Context, boardID string, order []CardPosition) error {
	if f.writeOrderErr != nil {
		return f.writeOrderErr
	}
	f.orderWrites++
	for _, cp := range order {
		c, ok := f.cards[boardID][cp.CardID]
		if !ok {
			return errors.New("fakeStore: unknown card " + cp.CardID)
		}
		c.Order = cp.Position
		f.cards[boardID][cp.CardID] = c
	}
	return nil
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, error) {
	s, ok := f.settings[key]
	if !ok {
		return "", nil
	}
	return s.Value, nil
}

func (f *fakeStore) PutSetting(ctx context.Context, s AppSetting) error {
	if f.settings == nil {
		f.settings = map[string]AppSetting{}
	}
	f.settings[s.Key] = s
	return nil
}

func (f *fakeStore) ListSettings(ctx context.Context) ([]AppSetting, error) {
	var out []AppSetting
	for _, s := range f.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// fakeIdentity counts lookups so tests can assert the owner path skips the
// remote profile call.
type fakeIdentity struct {
	profiles map[string]Profile
	err      error
	calls    int
}

func (f *fakeIdentity) Profile(ctx context.Context, userID string) (Profile, error) {
	f.calls++
	if f.err != nil {
		return Profile{}, f.err
	}
	return f.profiles[userID], nil
}
