package domain

// BoardEvent notifies downstream consumers that a board changed. Publishing
// is advisory; a lost event never fails the originating request.
type BoardEvent struct {
	Type    string `json:"type"`
	BoardID string `json:"boardId"`
	ActorID string `json:"actorId"`
	Time    int64  `json:"time"`
}

const (
	EventBoardCreated   = "board-created"
	EventCardCreated    = "card-created"
	EventCardsReordered = "cards-reordered"
)
