package form

import "github.com/debemdeboas/quill/internal/model"

// Mode is either New or Editing an existing post. It is fixed when the form
// is constructed.
type Mode struct {
	existing *model.Post
}

// NewPost is the mode for a post that does not exist yet.
func NewPost() Mode {
	return Mode{}
}

// Editing is the mode for changing post. The post is copied; the form never
// writes to it.
func Editing(post model.Post) Mode {
	return Mode{existing: &post}
}

func (m Mode) IsNew() bool {
	return m.existing == nil
}

// Existing returns a copy of the post being edited.
func (m Mode) Existing() (model.Post, bool) {
	if m.existing == nil {
		return model.Post{}, false
	}
	return *m.existing, true
}

func (m Mode) String() string {
	if m.IsNew() {
		return "new"
	}
	return "editing"
}
