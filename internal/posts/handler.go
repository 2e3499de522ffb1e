// Package posts serves stored posts to readers.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/auth"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/repository"
	"github.com/debemdeboas/quill/internal/routes"
	"github.com/debemdeboas/quill/internal/util"
)

var postsLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	postsLogger = l
}

type PostReader interface {
	Get(ctx context.Context, id model.PostID) (*model.Post, error)
	List(ctx context.Context) ([]model.Post, error)
}

type Previewer interface {
	PreviewURL(ctx context.Context, id model.FileID) (string, error)
}

type Handler struct {
	posts    PostReader
	previews Previewer
}

func NewHandler(posts PostReader, previews Previewer) *Handler {
	return &Handler{posts: posts, previews: previews}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.PostDetail, h.ServePost)
	mux.HandleFunc(routes.PostList, h.ServeList)
}

type PostView struct {
	ID           model.PostID `json:"id"`
	Title        string       `json:"title"`
	Slug         string       `json:"slug"`
	Content      string       `json:"content"`
	Status       model.Status `json:"status"`
	PreviewURL   string       `json:"preview_url,omitempty"`
	Owner        model.UserID `json:"owner,omitempty"`
	CreatedDate  time.Time    `json:"created_date"`
	ModifiedDate time.Time    `json:"modified_date"`
}

// visible hides inactive posts from everyone but their owner.
func visible(r *http.Request, p *model.Post) bool {
	if p.Status != model.StatusInactive {
		return true
	}
	user, ok := auth.UserIDFromContext(r.Context())
	return ok && user == p.Owner
}

func (h *Handler) ServePost(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), model.PostID(r.PathValue("id")))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !visible(r, post)) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": config.ErrPostNotFound})
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to read post")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": config.ErrInternalServerError})
		return
	}

	etag := postETag(post)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set(config.HETag, etag)

	writeJSON(w, http.StatusOK, PostView{
		ID:           post.ID,
		Title:        post.Title,
		Slug:         post.Slug,
		Content:      post.Content,
		Status:       post.Status,
		PreviewURL:   h.previewURL(r.Context(), post.FeaturedImage),
		Owner:        post.Owner,
		CreatedDate:  post.CreatedDate,
		ModifiedDate: post.ModifiedDate,
	})
}

func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	list, err := h.posts.List(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to list posts")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": config.ErrInternalServerError})
		return
	}

	cards := make([]model.PostCard, 0, len(list))
	for i := range list {
		p := &list[i]
		if !visible(r, p) {
			continue
		}
		cards = append(cards, model.PostCard{
			ID:         p.ID,
			Title:      p.Title,
			PreviewURL: h.previewURL(r.Context(), p.FeaturedImage),
			Path:       p.URLPath(),
		})
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) previewURL(ctx context.Context, id model.FileID) string {
	if id == "" || h.previews == nil {
		return ""
	}
	url, err := h.previews.PreviewURL(ctx, id)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file_id", string(id)).Msg("No preview for featured image")
		return ""
	}
	return url
}

// postETag covers every stored field the detail view renders.
func postETag(p *model.Post) string {
	return `"` + util.ContentHashString(strings.Join([]string{
		string(p.ID),
		p.Title,
		p.Slug,
		string(p.Status),
		string(p.FeaturedImage),
		p.ContentHash,
		p.ModifiedDate.UTC().Format(time.RFC3339Nano),
	}, "\x00")) + `"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		postsLogger.Warn().Err(err).Msg("Failed to write response")
	}
}
