package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/debemdeboas/quill/internal/form"
	"github.com/debemdeboas/quill/internal/submit"
)

func TestRegistryOpenGetClose(t *testing.T) {
	r := NewRegistry(Deps{})

	s, err := r.Open(form.NewPost(), alice)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Owner != alice || s.Coordinator.State() != submit.Idle {
		t.Errorf("Unexpected session %+v", s)
	}
	if n := s.Form.Watchers(form.FieldTitle); n != 1 {
		t.Errorf("Expected the form to be mounted, got %d title watchers", n)
	}

	got, err := r.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Expected to find the session, got %v", err)
	}

	r.Close(s.ID)
	r.Close(s.ID)
	if _, err := r.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if !s.Form.Disposed() {
		t.Error("Expected Close to dispose the form")
	}
}

func TestSessionRecordsNavigation(t *testing.T) {
	s := &Session{}
	if s.Destination() != "" {
		t.Error("Expected no destination before navigation")
	}
	s.NavigateTo("/post/a")
	if s.Destination() != "/post/a" {
		t.Errorf("Expected /post/a, got %q", s.Destination())
	}
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry(Deps{})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	old, _ := r.Open(form.NewPost(), alice)
	now = now.Add(3 * time.Hour)
	fresh, _ := r.Open(form.NewPost(), alice)

	if n := r.Sweep(2 * time.Hour); n != 1 {
		t.Errorf("Expected one session swept, got %d", n)
	}
	if _, err := r.Get(old.ID); err == nil {
		t.Error("Expected the old session to be closed")
	}
	if _, err := r.Get(fresh.ID); err != nil {
		t.Error("Expected the fresh session to stay open")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 session left, got %d", r.Len())
	}
}

func TestStartSweeperStopsWithContext(t *testing.T) {
	r := NewRegistry(Deps{})
	now := time.Now()
	r.now = func() time.Time { return now }
	_, _ = r.Open(form.NewPost(), alice)
	now = now.Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartSweeper(ctx, 5*time.Millisecond, time.Minute)

	deadline := time.After(time.Second)
	for r.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("Expected the sweeper to close the stale session")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
