package handler

import (
	"context"
	"net/http"

	"github.com/clipshelf/server/internal/ctxkeys"
	"github.com/clipshelf/server/internal/logger"
	"github.com/clipshelf/server/internal/model"
	"github.com/clipshelf/server/internal/response"
	"github.com/clipshelf/server/internal/service"
)

const defaultAccessLogLimit = 50

type ClipHandler struct {
	clips    *service.ClipService
	tags     *service.TagService
	recorder *service.Recorder
}

func NewClipHandler(clips *service.ClipService, tags *service.TagService, recorder *service.Recorder) *ClipHandler {
	return &ClipHandler{clips: clips, tags: tags, recorder: recorder}
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

func (h *ClipHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.CreateClipInput
	err := decodeJSON(w, r, &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	clip, err := h.clips.Create(r.Context(), user.ID, in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("clip created", "clip_id", clip.ID, "short_url", clip.ShortURL, "user_id", user.ID)
	response.JSON(w, http.StatusCreated, clip)
}

// ListOwn pages through the caller's clips.
func (h *ClipHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	page, pageSize, err := pagination(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	result, err := h.clips.ListOwn(r.Context(), user.ID, page, pageSize)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *ClipHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pagination(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	result, err := h.clips.ListPublic(r.Context(), page, pageSize)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Get reads a clip by id or short url. Each successful read counts as a
// view.
func (h *ClipHandler) Get(w http.ResponseWriter, r *http.Request) {
	clip, err := h.clips.Get(r.Context(), r.PathValue("ref"), ctxkeys.UserID(r.Context()), accessMeta(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, clip)
}

// Render returns a markdown clip as HTML, or wrapped in the JSON envelope
// with ?format=json.
func (h *ClipHandler) Render(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.clips.Render(r.Context(), r.PathValue("ref"), ctxkeys.UserID(r.Context()), accessMeta(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		response.JSON(w, http.StatusOK, rendered)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rendered.HTML))
}

// Resolve serves the public /s/{short_url} link: url clips redirect,
// encrypted clips come back as JSON so the client can decrypt them, and
// everything else is returned as plain text.
func (h *ClipHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	clip, err := h.clips.Resolve(r.Context(), r.PathValue("short_url"), ctxkeys.UserID(r.Context()), accessMeta(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	switch {
	case clip.IsEncrypted:
		response.JSON(w, http.StatusOK, clip)
	case clip.ContentType == model.ContentTypeURL:
		http.Redirect(w, r, clip.Content, http.StatusFound)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(clip.Content))
	}
}

func (h *ClipHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	id, err := pathID(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	var in service.UpdateClipInput
	err = decodeJSON(w, r, &in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	clip, err := h.clips.Update(r.Context(), user.ID, id, in)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, clip)
}

func (h *ClipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	id, err := pathID(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	err = h.clips.Delete(r.Context(), user.ID, id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("clip deleted", "clip_id", id, "user_id", user.ID)
	response.Message(w, http.StatusOK, "clip deleted")
}

func (h *ClipHandler) AccessLogs(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	id, err := pathID(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultAccessLogLimit)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	entries, err := h.recorder.ListForClip(r.Context(), user.ID, id, limit)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entries)
}

func (h *ClipHandler) AttachTags(w http.ResponseWriter, r *http.Request) {
	h.changeTags(w, r, h.tags.Attach)
}

func (h *ClipHandler) DetachTags(w http.ResponseWriter, r *http.Request) {
	h.changeTags(w, r, h.tags.Detach)
}

func (h *ClipHandler) changeTags(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, userID, clipID int64, names []string) (*model.Clip, error)) {
	user := ctxkeys.User(r.Context())

	id, err := pathID(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	var req tagsRequest
	err = decodeJSON(w, r, &req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	clip, err := change(r.Context(), user.ID, id, req.Tags)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, clip)
}
