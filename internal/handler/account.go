package handler

import (
	"net/http"

	"github.com/clipshelf/server/internal/ctxkeys"
	"github.com/clipshelf/server/internal/logger"
	"github.com/clipshelf/server/internal/response"
	"github.com/clipshelf/server/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// DeleteAccount soft-deletes the caller. Sessions are revoked and clips
// disappear immediately; rows are purged after the retention window.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.accounts.SoftDelete(r.Context(), user.ID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("account deleted", "user_id", user.ID)
	response.Message(w, http.StatusOK, "account deleted")
}
