package api

import (
	"tube-curator/internal/auth"
	"tube-curator/internal/storage"
	"tube-curator/internal/youtube"
)

// Handler carries the dependencies shared by every API endpoint.
type Handler struct {
	Store   storage.Repository
	Tokens  *auth.TokenManager
	Checker youtube.Checker
}

func NewHandler(store storage.Repository, tokens *auth.TokenManager) *Handler {
	return &Handler{Store: store, Tokens: tokens}
}
