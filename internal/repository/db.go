package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/quill/internal/cache"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/util"
	"github.com/debemdeboas/quill/internal/util/compression"
)

const selectPosts = `SELECT id, title, slug, content, content_hash, status, featured_image, user_id, created_at, modified_at FROM posts`

type DBPostRepository struct { // implements PostRepository
	postsCache *cache.Cache[model.PostID, *model.Post]

	mu               sync.RWMutex
	postsCacheSorted []model.Post
	lastModifiedTime *time.Time

	reloadNotifier func(model.PostID)

	db         db.Db
	compressor compression.Compressor
	now        func() time.Time
}

func NewDBPostRepository(db db.Db, compressor compression.Compressor) *DBPostRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}

	return &DBPostRepository{
		postsCache: cache.NewCache[model.PostID, *model.Post](),

		db: db,

		compressor: compressor,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Init fills the read cache from the database.
func (r *DBPostRepository) Init(ctx context.Context) error {
	posts, postMap, err := r.loadPosts(ctx)
	if err != nil {
		return fmt.Errorf("error initializing posts: %w", err)
	}
	r.setCache(posts, postMap)
	return nil
}

func (r *DBPostRepository) Create(ctx context.Context, fields model.PostFields, owner model.UserID) (*model.Post, error) {
	compressed, hash, err := r.encode(fields.Content)
	if err != nil {
		return nil, err
	}

	id, err := r.newPostID(ctx, fields.Slug)
	if err != nil {
		return nil, err
	}

	now := r.now()
	post := &model.Post{
		ID:            id,
		Title:         fields.Title,
		Slug:          fields.Slug,
		Content:       fields.Content,
		Status:        fields.Status,
		FeaturedImage: fields.FeaturedImage,
		ContentHash:   hash,
		CreatedDate:   now,
		ModifiedDate:  now,
		Owner:         owner,
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO posts (id, title, slug, content, content_hash, status, featured_image, user_id, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Slug, compressed, post.ContentHash, string(post.Status),
		string(post.FeaturedImage), string(post.Owner), post.CreatedDate, post.ModifiedDate,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %q", ErrSlugTaken, post.Slug)
		}
		return nil, fmt.Errorf("error saving post: %w", err)
	}

	repoLogger.Debug().Str("post_id", string(post.ID)).Msg("Post created")
	r.store(post)

	return clonePost(post), nil
}

func (r *DBPostRepository) Update(ctx context.Context, id model.PostID, fields model.PostFields) (*model.Post, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	compressed, hash, err := r.encode(fields.Content)
	if err != nil {
		return nil, err
	}

	post := current
	post.Title = fields.Title
	post.Slug = fields.Slug
	post.Content = fields.Content
	post.Status = fields.Status
	post.FeaturedImage = fields.FeaturedImage
	post.ModifiedDate = r.now()

	changed := post.ContentHash != hash
	post.ContentHash = hash

	res, err := r.db.Exec(ctx,
		`UPDATE posts SET title = ?, slug = ?, content = ?, content_hash = ?, status = ?, featured_image = ?, modified_at = ? WHERE id = ?`,
		post.Title, post.Slug, compressed, post.ContentHash, string(post.Status),
		string(post.FeaturedImage), post.ModifiedDate, post.ID,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %q", ErrSlugTaken, post.Slug)
		}
		return nil, fmt.Errorf("error saving post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.postsCache.Delete(id)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	repoLogger.Debug().Str("post_id", string(post.ID)).Bool("content_changed", changed).Msg("Post updated")
	r.store(post)
	r.notify(post.ID)

	return clonePost(post), nil
}

// Get returns a copy of the post, reading through the cache.
func (r *DBPostRepository) Get(ctx context.Context, id model.PostID) (*model.Post, error) {
	if post, ok := r.postsCache.Get(id); ok {
		return clonePost(post), nil
	}

	row := r.db.QueryRow(ctx, selectPosts+` WHERE id = ?`, id)
	post, err := r.scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	r.store(post)
	return clonePost(post), nil
}

// List returns posts newest first.
func (r *DBPostRepository) List(ctx context.Context) ([]model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.postsCacheSorted), nil
}

func (r *DBPostRepository) SetReloadNotifier(notifier func(model.PostID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadNotifier = notifier
}

// Watch polls the database for writes made by other processes, such as the
// migrate command, until ctx is done.
func (r *DBPostRepository) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				repoLogger.Error().Err(err).Msg("Error reloading posts")
			}
		}
	}
}

// Refresh reloads the cache when the database holds newer modifications and
// notifies listeners of posts whose content changed.
func (r *DBPostRepository) Refresh(ctx context.Context) error {
	latestTime, err := r.latestModifiedTime(ctx)
	if err != nil {
		return err
	}

	r.mu.RLock()
	last := r.lastModifiedTime
	r.mu.RUnlock()

	// If we have a cached time and nothing has changed, skip
	if last != nil && latestTime != nil && !latestTime.After(*last) {
		repoLogger.Debug().Msg("No posts modified, skipping reload")
		return nil
	}

	posts, postMap, err := r.loadPosts(ctx)
	if err != nil {
		return err
	}

	var changed []model.PostID
	for _, p := range posts {
		cached, ok := r.postsCache.Get(p.ID)
		if !ok {
			repoLogger.Info().Str("post_id", string(p.ID)).Str("title", p.Title).Msg("New post detected")
			continue
		}
		if cached.ContentHash != p.ContentHash {
			repoLogger.Info().Str("post_id", string(p.ID)).Str("title", p.Title).Msg("Post content changed, reloading")
			changed = append(changed, p.ID)
		}
	}

	r.setCache(posts, postMap)
	for _, id := range changed {
		r.notify(id)
	}
	return nil
}

func (r *DBPostRepository) newPostID(ctx context.Context, slug string) (model.PostID, error) {
	if slug == "" {
		return model.PostID(uuid.New().String()), nil
	}

	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE id = ?`, slug).Scan(&n); err != nil {
		return "", fmt.Errorf("error checking post id: %w", err)
	}
	if n > 0 {
		return model.PostID(uuid.New().String()), nil
	}
	return model.PostID(slug), nil
}

func (r *DBPostRepository) encode(content string) ([]byte, string, error) {
	compressed, err := r.compressor.Compress([]byte(content))
	if err != nil {
		return nil, "", fmt.Errorf("error compressing content: %w", err)
	}
	return compressed, util.ContentHashString(content), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DBPostRepository) scanPost(row rowScanner) (*model.Post, error) {
	var post model.Post
	var compressed []byte
	var hash, status, image, owner sql.NullString
	var created, modified sql.NullTime

	err := row.Scan(&post.ID, &post.Title, &post.Slug, &compressed, &hash, &status, &image, &owner, &created, &modified)
	if err != nil {
		return nil, err
	}

	content, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing content of %s: %w", post.ID, err)
	}

	post.Content = string(content)
	post.ContentHash = hash.String
	post.Status = model.Status(status.String)
	post.FeaturedImage = model.FileID(image.String)
	post.Owner = model.UserID(owner.String)
	post.CreatedDate = created.Time
	post.ModifiedDate = modified.Time
	if !modified.Valid {
		post.ModifiedDate = post.CreatedDate
	}
	return &post, nil
}

func (r *DBPostRepository) loadPosts(ctx context.Context) ([]model.Post, map[model.PostID]*model.Post, error) {
	rows, err := r.db.Query(ctx, selectPosts)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	postMap := make(map[model.PostID]*model.Post)

	for rows.Next() {
		post, err := r.scanPost(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("error scanning post: %w", err)
		}
		posts = append(posts, *post)
		postMap[post.ID] = post
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading posts: %w", err)
	}

	sortPosts(posts)
	return posts, postMap, nil
}

func (r *DBPostRepository) latestModifiedTime(ctx context.Context) (*time.Time, error) {
	var latestTimeStr sql.NullString
	err := r.db.QueryRow(ctx, `SELECT MAX(modified_at) FROM posts`).Scan(&latestTimeStr)
	if err != nil {
		return nil, fmt.Errorf("error scanning latest modified time: %w", err)
	}

	if !latestTimeStr.Valid {
		return nil, nil // It was NULL, so no posts or no valid timestamps.
	}

	// The go-sqlite3 driver returns a string for MAX(), so we must parse it.
	timeFormats := []string{
		"2006-01-02 15:04:05.999999999-07:00", // Space separator with timezone
		time.RFC3339Nano,                      // 'T' separator with timezone
		time.RFC3339,                          // 'T' separator, no nanos
		"2006-01-02 15:04:05",                 // CURRENT_TIMESTAMP
	}

	var latestTime time.Time
	var parseErr error
	for _, format := range timeFormats {
		latestTime, parseErr = time.Parse(format, latestTimeStr.String)
		if parseErr == nil {
			return &latestTime, nil
		}
	}

	return nil, fmt.Errorf("error parsing latest modified time '%s' with any known format: %w", latestTimeStr.String, parseErr)
}

func (r *DBPostRepository) setCache(posts []model.Post, postMap map[model.PostID]*model.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.postsCacheSorted = posts
	r.postsCache.SetTo(postMap)
	r.lastModifiedTime = latest(posts)
}

// store puts post into the cache and the sorted list.
func (r *DBPostRepository) store(post *model.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.postsCache.Set(post.ID, post)

	i := slices.IndexFunc(r.postsCacheSorted, func(p model.Post) bool { return p.ID == post.ID })
	if i >= 0 {
		r.postsCacheSorted[i] = *post
	} else {
		r.postsCacheSorted = append(r.postsCacheSorted, *post)
	}
	sortPosts(r.postsCacheSorted)

	if r.lastModifiedTime == nil || post.ModifiedDate.After(*r.lastModifiedTime) {
		t := post.ModifiedDate
		r.lastModifiedTime = &t
	}
}

func (r *DBPostRepository) notify(id model.PostID) {
	r.mu.RLock()
	notifier := r.reloadNotifier
	r.mu.RUnlock()

	if notifier != nil {
		go notifier(id)
	}
}

func sortPosts(posts []model.Post) {
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return -a.CreatedDate.Compare(b.CreatedDate)
	})
}

func latest(posts []model.Post) *time.Time {
	var t *time.Time
	for i := range posts {
		if t == nil || posts[i].ModifiedDate.After(*t) {
			m := posts[i].ModifiedDate
			t = &m
		}
	}
	return t
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	return &c
}
