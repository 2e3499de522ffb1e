package editor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/auth"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/form"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/repository"
	"github.com/debemdeboas/quill/internal/routes"
	"github.com/debemdeboas/quill/internal/submit"
)

const MsgSlugTaken = "Slug is already in use."

type PostReader interface {
	Get(ctx context.Context, id model.PostID) (*model.Post, error)
}

type Previewer interface {
	PreviewURL(ctx context.Context, id model.FileID) (string, error)
}

type Handler struct {
	sessions *Registry
	posts    PostReader
	previews Previewer
	auth     auth.AuthProvider

	maxImageBytes int64
}

func NewHandler(sessions *Registry, posts PostReader, previews Previewer, authProvider auth.AuthProvider, maxImageBytes int64) *Handler {
	return &Handler{
		sessions:      sessions,
		posts:         posts,
		previews:      previews,
		auth:          authProvider,
		maxImageBytes: maxImageBytes,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.EditorNew, h.ServeNew)
	mux.HandleFunc(routes.EditorEdit, h.ServeEdit)
	mux.HandleFunc(routes.EditorState, h.ServeState)
	mux.HandleFunc(routes.EditorField, h.ServeField)
	mux.HandleFunc(routes.EditorSubmit, h.ServeSubmit)
	mux.HandleFunc(routes.EditorDiscard, h.ServeDiscard)
}

// State is the editor as the client renders it.
type State struct {
	DraftID         SessionID             `json:"draft_id"`
	Mode            string                `json:"mode"`
	Title           string                `json:"title"`
	Slug            string                `json:"slug"`
	Content         string                `json:"content"`
	Status          model.Status          `json:"status"`
	Statuses        []model.Status        `json:"statuses"`
	ImageName       string                `json:"image_name,omitempty"`
	ImagePreviewURL string                `json:"image_preview_url,omitempty"`
	Errors          map[form.Field]string `json:"errors"`
	Submission      string                `json:"submission"`
}

type fieldResponse struct {
	Field  form.Field            `json:"field"`
	Value  any                   `json:"value"`
	Slug   string                `json:"slug"`
	Error  string                `json:"error,omitempty"`
	Errors map[form.Field]string `json:"errors"`
}

type submitResponse struct {
	ID       model.PostID `json:"id"`
	Path     string       `json:"path"`
	Warnings []string     `json:"warnings,omitempty"`
}

type errorResponse struct {
	Error  string                `json:"error"`
	Errors map[form.Field]string `json:"errors,omitempty"`
}

func (h *Handler) state(ctx context.Context, s *Session) State {
	d := s.Form.Draft()
	st := State{
		DraftID:    s.ID,
		Mode:       s.Form.Mode().String(),
		Title:      d.Title,
		Slug:       d.Slug,
		Content:    d.Content,
		Status:     d.Status,
		Statuses:   model.Statuses,
		Errors:     s.Form.Errors(),
		Submission: s.Coordinator.State().String(),
	}

	if d.Image != nil {
		st.ImageName = d.Image.Name
	} else if post, ok := s.Form.Mode().Existing(); ok && post.FeaturedImage != "" && h.previews != nil {
		url, err := h.previews.PreviewURL(ctx, post.FeaturedImage)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file_id", string(post.FeaturedImage)).Msg("No preview for featured image")
		}
		st.ImagePreviewURL = url
	}
	return st
}

func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.EnforceUser(w, r)
	if err != nil {
		return
	}

	s, err := h.sessions.Open(form.NewPost(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	setDraftCookie(w, s.ID)
	writeJSON(w, http.StatusCreated, h.state(r.Context(), s))
}

func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.EnforceUser(w, r)
	if err != nil {
		return
	}

	post, err := h.posts.Get(r.Context(), model.PostID(r.PathValue("id")))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, config.ErrPostNotFound, nil)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to load post for editing")
		writeError(w, http.StatusInternalServerError, config.ErrInternalServerError, nil)
		return
	}
	if post.Owner != "" && post.Owner != user {
		writeError(w, http.StatusForbidden, config.ErrForbidden, nil)
		return
	}

	s, err := h.sessions.Open(form.Editing(*post), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	setDraftCookie(w, s.ID)
	writeJSON(w, http.StatusCreated, h.state(r.Context(), s))
}

func (h *Handler) ServeState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.state(r.Context(), s))
}

// ServeField applies one text field edit and answers with the derived slug
// and the field's validation message.
func (h *Handler) ServeField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, config.ErrInvalidRequest, nil)
		return
	}

	name := form.Field(r.PostForm.Get("name"))
	if name == form.FieldImage {
		writeError(w, http.StatusBadRequest, "image is sent with the submission", nil)
		return
	}

	if err := s.Form.SetField(name, r.PostForm.Get("value")); err != nil {
		h.writeFormError(w, err)
		return
	}

	d := s.Form.Draft()
	errs := s.Form.Errors()
	resp := fieldResponse{
		Field:  name,
		Slug:   d.Slug,
		Error:  errs[name],
		Errors: errs,
	}
	switch name {
	case form.FieldTitle:
		resp.Value = d.Title
	case form.FieldSlug:
		resp.Value = d.Slug
	case form.FieldContent:
		resp.Value = d.Content
	case form.FieldStatus:
		resp.Value = d.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

// ServeSubmit applies the submitted fields and image, then runs the
// submission. Text fields are applied title first so a slug sent alongside
// overrides the derived one.
func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	l := zerolog.Ctx(r.Context()).With().Str("session_id", string(s.ID)).Logger()

	// A submit arriving during another leaves the draft untouched.
	if s.Coordinator.State().InFlight() {
		l.Warn().Msg("Ignoring submit while a submission is in flight")
		writeError(w, http.StatusConflict, submit.ErrSubmitInProgress.Error(), nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, config.ErrImageTooLarge, nil)
			return
		}
		writeError(w, http.StatusBadRequest, config.ErrInvalidRequest, nil)
		return
	}
	if r.PostForm == nil {
		_ = r.ParseForm()
	}

	for _, field := range []form.Field{form.FieldTitle, form.FieldSlug, form.FieldContent, form.FieldStatus} {
		values, present := r.PostForm[string(field)]
		if !present {
			continue
		}
		if err := s.Form.SetField(field, values[0]); err != nil {
			h.writeFormError(w, err)
			return
		}
	}

	img, err := readImage(r, h.maxImageBytes)
	switch {
	case errors.Is(err, errImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, config.ErrImageTooLarge, nil)
		return
	case err != nil:
		l.Warn().Err(err).Msg("Failed to read featured image")
		writeError(w, http.StatusBadRequest, config.ErrInvalidRequest, nil)
		return
	case img != nil:
		if err := s.Form.SetField(form.FieldImage, img); err != nil {
			h.writeFormError(w, err)
			return
		}
	}

	res, err := s.Coordinator.Submit(r.Context())
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	dest := s.Destination()
	h.sessions.Close(s.ID)
	clearDraftCookie(w)

	if dest == "" {
		l.Debug().Str("post_id", string(res.Post.ID)).Msg("Client left before navigation")
		return
	}

	if r.Header.Get(config.HHxRequest) != "" {
		w.Header().Set(config.HHxRedirect, dest)
		writeJSON(w, http.StatusOK, submitResponse{ID: res.Post.ID, Path: dest, Warnings: res.Warnings})
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// ServeDiscard is navigating away from the editor.
func (h *Handler) ServeDiscard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.sessions.Close(s.ID)
	clearDraftCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the path's draft id to a session owned by the caller.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	user, err := h.auth.EnforceUser(w, r)
	if err != nil {
		return nil, false
	}

	s, err := h.sessions.Get(SessionID(r.PathValue("draft")))
	if err != nil {
		writeError(w, http.StatusNotFound, config.ErrDraftNotFound, nil)
		return nil, false
	}
	if s.Owner != user {
		writeError(w, http.StatusForbidden, config.ErrForbidden, nil)
		return nil, false
	}
	return s, true
}

func (h *Handler) writeFormError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, form.ErrDisposed):
		writeError(w, http.StatusGone, err.Error(), nil)
	default:
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	}
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var verr *submit.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, submit.ErrValidationFailed.Error(), verr.Errors)
	case errors.Is(err, repository.ErrSlugTaken):
		writeError(w, http.StatusUnprocessableEntity, submit.ErrValidationFailed.Error(),
			map[form.Field]string{form.FieldSlug: MsgSlugTaken})
	case errors.Is(err, submit.ErrSubmitInProgress):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, submit.ErrNoSession):
		writeError(w, http.StatusUnauthorized, config.ErrUnauthorized, nil)
	case errors.Is(err, form.ErrDisposed):
		writeError(w, http.StatusGone, err.Error(), nil)
	case errors.Is(err, submit.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, submit.ErrUploadFailed.Error(), nil)
	case errors.Is(err, submit.ErrPersistFailed):
		writeError(w, http.StatusBadGateway, submit.ErrPersistFailed.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, config.ErrInternalServerError, nil)
	}
}

var errImageTooLarge = errors.New("image too large")

// readImage returns the uploaded "image" part, or nil when none was sent.
func readImage(r *http.Request, maxBytes int64) (*model.ImageFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(string(form.FieldImage))
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if header.Size > maxBytes {
		return nil, errImageTooLarge
	}
	return newImageFile(file, header)
}

func newImageFile(file multipart.File, header *multipart.FileHeader) (*model.ImageFile, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get(config.HCType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return &model.ImageFile{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func setDraftCookie(w http.ResponseWriter, id SessionID) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieDraftID,
		Value:    string(id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearDraftCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   config.CookieDraftID,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		editorLogger.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[form.Field]string) {
	writeJSON(w, status, errorResponse{Error: msg, Errors: fields})
}
