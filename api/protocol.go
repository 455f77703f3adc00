package api

import "commboard-api/domain"

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// POST /api/boards request body
type createBoardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"isPublic,omitempty"`
}

// PUT /api/cards/reorder request body
type reorderRequest struct {
	BoardID    string                `json:"boardId"`
	CardOrders []domain.CardPosition `json:"cardOrders"`
}

type reorderResponse struct {
	Success bool `json:"success"`
}

// PUT /api/admin/settings request body
type updateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type boardResponse struct {
	domain.Board
	Cards []domain.Card `json:"cards"`
}

type limitResponse struct {
	Error string `json:"error"`
	Limit string `json:"limit"`
	Max   int    `json:"max"`
}
