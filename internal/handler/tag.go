package handler

import (
	"net/http"

	"github.com/clipshelf/server/internal/ctxkeys"
	"github.com/clipshelf/server/internal/response"
	"github.com/clipshelf/server/internal/service"
)

type TagHandler struct {
	tags *service.TagService
}

func NewTagHandler(tags *service.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

// List returns the caller's tags in use, most used first.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.ListByUser(r.Context(), ctxkeys.User(r.Context()).ID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, tags)
}
