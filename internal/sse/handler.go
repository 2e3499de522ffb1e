package sse

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/model"
)

// ServeHTTP streams events for the post named by the "post" query parameter
// until the client goes away.
func (s *SSEClients) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	postID := r.URL.Query().Get("post")
	if postID == "" {
		http.Error(w, "Post parameter required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	client := &Client{
		Msg:    make(chan string, 1),
		PostID: model.PostID(postID),
	}
	s.Add(client)
	defer s.Delete(client)

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()
	l.Debug().Str("post_id", postID).Msg("SSE client connected")

	done := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-done:
			l.Debug().Str("post_id", postID).Msg("SSE client disconnected")
			return
		}
	}
}
