// Package form holds the editable state of a post while it is being authored.
//
// A Form owns a Draft exclusively. Writes go through SetField, which stores
// the value, re-validates that one field and notifies watchers of the field.
// Mount subscribes the slug to title changes; Dispose releases that
// subscription and every other watcher, after which the form rejects writes.
package form

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/slug"
)

var formLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	formLogger = l
}

type Field string

const (
	FieldTitle   Field = "title"
	FieldSlug    Field = "slug"
	FieldContent Field = "content"
	FieldStatus  Field = "status"
	FieldImage   Field = "image"
)

// Fields lists every field in display order.
var Fields = []Field{FieldTitle, FieldSlug, FieldContent, FieldStatus, FieldImage}

var (
	ErrDisposed     = errors.New("form is disposed")
	ErrUnknownField = errors.New("unknown field")
	ErrFieldType    = errors.New("wrong value type for field")
)

// Draft is the in-progress, not yet persisted set of field values.
type Draft struct {
	Title   string
	Slug    string
	Content string
	Status  model.Status
	Image   *model.ImageFile
}

// Listener is called with the new value after a field changed.
type Listener func(value any)

type Form struct {
	mu sync.Mutex

	mode  Mode
	draft Draft
	errs  map[Field]string

	watchers map[Field]map[int]Listener
	nextID   int

	unlinkSlug func()
	disposed   bool
}

// New creates a form. In Editing mode the draft is seeded from the post.
func New(mode Mode) *Form {
	f := &Form{
		mode:     mode,
		draft:    Draft{Status: model.DefaultStatus},
		errs:     make(map[Field]string),
		watchers: make(map[Field]map[int]Listener),
	}

	if post, ok := mode.Existing(); ok {
		f.draft.Title = post.Title
		f.draft.Slug = post.Slug
		if f.draft.Slug == "" {
			f.draft.Slug = string(post.ID)
		}
		f.draft.Content = post.Content
		if post.Status != "" {
			f.draft.Status = post.Status
		}
	}

	return f
}

func (f *Form) Mode() Mode {
	return f.mode
}

// Draft returns a copy of the current values.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Errors returns the field errors found by the latest validation of each field.
func (f *Form) Errors() map[Field]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := make(map[Field]string, len(f.errs))
	for k, v := range f.errs {
		errs[k] = v
	}
	return errs
}

func (f *Form) Disposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}

// SetField stores value and re-validates that field only. Slug values are
// normalised with slug.Derive. Watchers of the field run after the write,
// outside the form lock, so they may write other fields.
func (f *Form) SetField(name Field, value any) error {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return ErrDisposed
	}

	stored, err := f.store(name, value)
	if err != nil {
		f.mu.Unlock()
		return err
	}

	if verr := validateField(&f.draft, name, f.mode); verr != nil {
		f.errs[name] = verr.Error()
	} else {
		delete(f.errs, name)
	}

	listeners := make([]Listener, 0, len(f.watchers[name]))
	for _, l := range f.watchers[name] {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(stored)
	}
	return nil
}

// store writes value into the draft and returns what was stored. Callers hold mu.
func (f *Form) store(name Field, value any) (any, error) {
	switch name {
	case FieldTitle, FieldSlug, FieldContent:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrFieldType, name, value)
		}
		switch name {
		case FieldTitle:
			f.draft.Title = s
		case FieldSlug:
			s = slug.Derive(s)
			f.draft.Slug = s
		case FieldContent:
			f.draft.Content = s
		}
		return s, nil

	case FieldStatus:
		var status model.Status
		switch v := value.(type) {
		case model.Status:
			status = v
		case string:
			status = model.Status(strings.TrimSpace(v))
		default:
			return nil, fmt.Errorf("%w: %s expects a status, got %T", ErrFieldType, name, value)
		}
		f.draft.Status = status
		return status, nil

	case FieldImage:
		switch v := value.(type) {
		case *model.ImageFile:
			f.draft.Image = v
		case nil:
			f.draft.Image = nil
		default:
			return nil, fmt.Errorf("%w: %s expects an image file, got %T", ErrFieldType, name, value)
		}
		return f.draft.Image, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Watch registers fn for changes to field. The returned function removes the
// registration; calling it more than once is harmless.
func (f *Form) Watch(field Field, fn Listener) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return func() {}
	}
	return f.watchLocked(field, fn)
}

func (f *Form) watchLocked(field Field, fn Listener) func() {
	id := f.nextID
	f.nextID++
	if f.watchers[field] == nil {
		f.watchers[field] = make(map[int]Listener)
	}
	f.watchers[field][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.watchers[field], id)
		})
	}
}

// Watchers reports how many listeners are registered for field.
func (f *Form) Watchers(field Field) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers[field])
}

// Mount subscribes the slug to title changes. Mounting twice keeps a single
// subscription.
func (f *Form) Mount() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return ErrDisposed
	}
	if f.unlinkSlug != nil {
		return nil
	}

	f.unlinkSlug = f.watchLocked(FieldTitle, func(value any) {
		err := f.SetField(FieldSlug, slug.DeriveAny(value))
		if err != nil && !errors.Is(err, ErrDisposed) {
			formLogger.Error().Err(err).Msg("Failed to derive slug from title")
		}
	})
	return nil
}

// Dispose tears down the title subscription and all watchers. It is safe to
// call on every exit path, including more than once.
func (f *Form) Dispose() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.disposed = true
	unlink := f.unlinkSlug
	f.unlinkSlug = nil
	f.mu.Unlock()

	if unlink != nil {
		unlink()
	}

	f.mu.Lock()
	f.watchers = make(map[Field]map[int]Listener)
	f.mu.Unlock()

	formLogger.Debug().Str("mode", f.mode.String()).Msg("Form disposed")
}

// ValidateAll checks every field and replaces the recorded field errors.
func (f *Form) ValidateAll() Validation {
	_, res := f.Snapshot()
	return res
}

// Snapshot validates the draft and returns the exact copy that was validated.
func (f *Form) Snapshot() (Draft, Validation) {
	f.mu.Lock()
	defer f.mu.Unlock()

	draft := f.draft
	res := validateDraft(&draft, f.mode)

	f.errs = make(map[Field]string, len(res.Errors))
	for k, v := range res.Errors {
		f.errs[k] = v
	}
	return draft, res
}
