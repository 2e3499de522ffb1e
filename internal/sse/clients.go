// Package sse provides Server-Sent Events client management for real-time communication.
package sse

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/model"
)

var sseLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	sseLogger = l
}

// MsgReload tells viewers of a post to fetch it again.
const MsgReload = "reload"

type Client struct {
	Msg    chan string
	PostID model.PostID
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to every client watching postID. Clients that are not
// ready to receive miss the message.
func (s *SSEClients) Broadcast(postID model.PostID, msg string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sent := 0
	for client := range s.clients {
		if client.PostID == postID {
			select {
			case client.Msg <- msg:
				sent++
			default:
			}
		}
	}
	return sent
}

// NotifyReload matches the repository's reload notifier.
func (s *SSEClients) NotifyReload(postID model.PostID) {
	n := s.Broadcast(postID, MsgReload)
	sseLogger.Debug().Str("post_id", string(postID)).Int("clients", n).Msg("Reload broadcast")
}
