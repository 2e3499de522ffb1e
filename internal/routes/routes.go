// Package routes defines HTTP route constants for the application.
package routes

// API Routes
const (
	RobotsPath = "/robots.txt"

	// SSE
	SSEPath = "GET /sse"

	// Posts
	PostsPrefix = "/post/"
	PostDetail  = "GET /post/{id}"
	PostList    = "GET /posts"
	FileServe   = "GET /files/{id}"
	FilesPrefix = "/files/"

	// Editor routes
	EditorNew     = "POST /editor/new"
	EditorEdit    = "POST /post/{id}/edit"
	EditorState   = "GET /editor/{draft}"
	EditorField   = "POST /editor/{draft}/field"
	EditorSubmit  = "POST /editor/{draft}/submit"
	EditorDiscard = "DELETE /editor/{draft}"

	// Auth routes
	AuthChallenge = "/auth/challenge"
	AuthVerify    = "/auth/verify"
	WebhookUser   = "POST /webhook/user"
)

// PostPath is where the router navigates after a successful submission.
func PostPath(id string) string {
	return PostsPrefix + id
}

func FilePath(id string) string {
	return FilesPrefix + id
}
