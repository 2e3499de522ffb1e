// Package submit turns a validated form into a stored post.
//
// A submission moves through Idle -> Validating -> UploadingImage (only when
// an image was selected) -> Persisting -> Done | Failed. External effects are
// ordered so that a failed upload never reaches persistence and the previous
// image is only deleted once the new one is stored.
package submit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/form"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/util"
)

var submitLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	submitLogger = l
}

type State int

const (
	Idle State = iota
	Validating
	UploadingImage
	Persisting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case UploadingImage:
		return "uploading_image"
	case Persisting:
		return "persisting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// InFlight reports whether a submission is running in this state.
func (s State) InFlight() bool {
	return s == Validating || s == UploadingImage || s == Persisting
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Files   FileStore
	Posts   PostRepository
	Session SessionProvider
	Router  Router

	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to State)
}

// Result describes a successful submission.
type Result struct {
	Post *model.Post
	Path string

	// Warnings are non-blocking problems, such as a previous image that
	// could not be deleted.
	Warnings []string
}

type Coordinator struct {
	form *form.Form
	deps Deps

	mu    sync.Mutex
	state State
}

func New(f *form.Form, deps Deps) *Coordinator {
	return &Coordinator{
		form:  f,
		deps:  deps,
		state: Idle,
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// begin moves to Validating unless a submission is already running.
func (c *Coordinator) begin() bool {
	c.mu.Lock()
	if c.state.InFlight() {
		c.mu.Unlock()
		return false
	}
	from := c.state
	c.state = Validating
	c.mu.Unlock()

	c.notify(from, Validating)
	return true
}

func (c *Coordinator) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	c.notify(from, to)
}

func (c *Coordinator) notify(from, to State) {
	submitLogger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("mode", c.form.Mode().String()).
		Msg("Submission state changed")

	if c.deps.OnTransition != nil {
		c.deps.OnTransition(from, to)
	}
}

// Submit validates the draft, uploads the selected image, creates or updates
// the post and navigates to it. A second call while one is running returns
// ErrSubmitInProgress without touching any collaborator.
//
// External calls are issued with a context detached from ctx's cancellation:
// once started they run to completion. If ctx is done, or the form disposed,
// by the time the post is stored, navigation is skipped.
func (c *Coordinator) Submit(ctx context.Context) (Result, error) {
	if c.form.Disposed() {
		return Result{}, form.ErrDisposed
	}
	if !c.begin() {
		submitLogger.Warn().Msg("Ignoring submit while a submission is in flight")
		return Result{}, ErrSubmitInProgress
	}

	res, err := c.run(ctx)
	if err != nil {
		c.transition(Failed)
		submitLogger.Error().Err(err).Str("mode", c.form.Mode().String()).Msg("Submission failed")
		return Result{}, err
	}

	c.transition(Done)
	submitLogger.Info().
		Str("post_id", string(res.Post.ID)).
		Str("title", res.Post.Title).
		Msg("Post saved")

	if ctx.Err() != nil || c.form.Disposed() {
		submitLogger.Debug().Str("post_id", string(res.Post.ID)).Msg("Editor gone, skipping navigation")
		return res, nil
	}
	if c.deps.Router != nil {
		c.deps.Router.NavigateTo(res.Path)
	}
	return res, nil
}

func (c *Coordinator) run(ctx context.Context) (Result, error) {
	draft, v := c.form.Snapshot()
	if !v.Valid {
		return Result{}, &ValidationError{Errors: v.Errors}
	}

	callCtx := context.WithoutCancel(ctx)
	existing, editing := c.form.Mode().Existing()

	var author model.UserID
	if !editing {
		var err error
		author, err = c.currentUser(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrPersistFailed, err)
		}
	}

	var fileID model.FileID
	if draft.Image != nil {
		c.transition(UploadingImage)

		id, err := c.deps.Files.Upload(callCtx, draft.Image)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		if id == "" {
			return Result{}, fmt.Errorf("%w: file store returned no identifier", ErrUploadFailed)
		}
		fileID = id
		submitLogger.Debug().Str("file_id", string(fileID)).Msg("Image uploaded")
	}

	c.transition(Persisting)

	fields := model.PostFields{
		Title:   strings.TrimSpace(draft.Title),
		Slug:    draft.Slug,
		Content: util.SanitizeHTML(draft.Content),
		Status:  draft.Status,
	}

	var res Result
	var post *model.Post
	var err error

	if editing {
		fields.FeaturedImage = existing.FeaturedImage
		if fileID != "" {
			if existing.FeaturedImage != "" {
				if derr := c.deps.Files.Delete(callCtx, existing.FeaturedImage); derr != nil {
					// The previous image is orphaned either way.
					submitLogger.Warn().
						Err(derr).
						Str("file_id", string(existing.FeaturedImage)).
						Msg("Failed to delete previous image")
					res.Warnings = append(res.Warnings, fmt.Sprintf("previous image %s was not deleted", existing.FeaturedImage))
				}
			}
			fields.FeaturedImage = fileID
		}
		post, err = c.deps.Posts.Update(callCtx, existing.ID, fields)
	} else {
		fields.FeaturedImage = fileID
		post, err = c.deps.Posts.Create(callCtx, fields, author)
	}

	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	if post == nil || post.ID == "" {
		return Result{}, fmt.Errorf("%w: repository returned no identifier", ErrPersistFailed)
	}

	res.Post = post
	res.Path = post.URLPath()
	return res, nil
}

func (c *Coordinator) currentUser(ctx context.Context) (model.UserID, error) {
	if c.deps.Session == nil {
		return "", ErrNoSession
	}
	user, err := c.deps.Session.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	if user == "" {
		return "", ErrNoSession
	}
	return user, nil
}
