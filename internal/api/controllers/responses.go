package controllers

import "github.com/datallboy/gofetch/internal/domain"

// CreateTransferRequest is the body of POST /api/transfers.
type CreateTransferRequest struct {
	URL            string `json:"url" validate:"required,http_url"`
	Dir            string `json:"dir"`
	Name           string `json:"name" validate:"omitempty,excludesall=/\\"`
	UseMemoryCache bool   `json:"use_memory_cache"`
	// UseServerName answers the naming conflict up front.
	UseServerName bool `json:"use_server_name"`
}

type TransferListResponse struct {
	Transfers []domain.Info `json:"transfers"`
}

type HistoryResponse struct {
	History []domain.HistoryRecord `json:"history"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
