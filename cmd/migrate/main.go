// Command migrate imports a directory of HTML files as posts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/logger"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/repository"
	"github.com/debemdeboas/quill/internal/slug"
	"github.com/debemdeboas/quill/internal/util"
	"github.com/debemdeboas/quill/internal/util/compression"
)

func main() {
	path := flag.String("path", "", "Path to the directory containing .html files")
	ownerID := flag.String("owner-id", "", "Owner user ID for the posts")
	dbPath := flag.String("db", "./quill.db", "SQLite database file")
	inactive := flag.Bool("inactive", false, "Import posts as inactive")
	flag.Parse()

	log := logger.New("info")

	if *path == "" || *ownerID == "" {
		log.Fatal().Msg("Both --path and --owner-id flags are required")
	}

	ctx := context.Background()

	database := db.NewSQLite(*dbPath)
	if err := database.InitDb(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	repo := repository.NewDBPostRepository(database, compression.ZstdCompressor{})

	status := model.StatusActive
	if *inactive {
		status = model.StatusInactive
	}

	n, err := importDir(ctx, log, repo, *path, model.UserID(*ownerID), status)
	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("Error reading directory")
	}
	log.Info().Int("imported", n).Msg("Migration finished")
}

type postCreator interface {
	Create(ctx context.Context, fields model.PostFields, owner model.UserID) (*model.Post, error)
}

// importDir creates one post per .html file in dir. Files that fail are
// logged and skipped.
func importDir(ctx context.Context, log zerolog.Logger, repo postCreator, dir string, owner model.UserID, status model.Status) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}

		post, err := importFile(ctx, repo, filepath.Join(dir, entry.Name()), owner, status)
		if err != nil {
			log.Error().Err(err).Str("file", entry.Name()).Msg("Error processing file")
			continue
		}
		log.Info().Str("file", entry.Name()).Str("post_id", string(post.ID)).Msg("Saved post")
		imported++
	}
	return imported, nil
}

func importFile(ctx context.Context, repo postCreator, path string, owner model.UserID, status model.Status) (*model.Post, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	title := documentTitle(string(content))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".html")
	}

	s := slug.Derive(title)
	if strings.Trim(s, "-") == "" {
		return nil, fmt.Errorf("no slug can be derived from %q", title)
	}

	return repo.Create(ctx, model.PostFields{
		Title:   title,
		Slug:    s,
		Content: util.SanitizeHTML(string(content)),
		Status:  status,
	}, owner)
}

// documentTitle returns the text of the first h1, or of the title element
// when there is no h1.
func documentTitle(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}

	var h1, title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1:
				if h1 == "" {
					h1 = textContent(n)
				}
			case atom.Title:
				if title == "" {
					title = textContent(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if h1 != "" {
		return h1
	}
	return title
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
