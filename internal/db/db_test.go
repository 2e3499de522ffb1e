package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

const select1 = `SELECT 1`
const insertUserUsername = `INSERT INTO users (id, username) VALUES (?, ?)`

const testEmail = "test@example.com"

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	db := NewSQLite(MemoryPath)
	if err := db.InitDb(context.Background()); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func columns(t *testing.T, db *SQLite, table string) map[string]bool {
	t.Helper()

	rows, err := db.Query(context.Background(), "PRAGMA table_info("+table+")")
	if err != nil {
		t.Fatalf("Failed to get %s table info: %v", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			t.Errorf("Failed to scan column info: %v", err)
			continue
		}
		cols[name] = true
	}
	return cols
}

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)

	// This test mainly ensures the function doesn't panic
}

func TestNewSQLite(t *testing.T) {
	db := NewSQLite(MemoryPath)

	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}
	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}
	if db.path != MemoryPath {
		t.Errorf("Expected path %q, got %q", MemoryPath, db.path)
	}
}

func TestSQLiteSchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("Tables exist", func(t *testing.T) {
		for _, table := range []string{"users", "posts"} {
			var name string
			err := db.QueryRow(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
			if err != nil {
				t.Errorf("Expected table %s to exist: %v", table, err)
			}
		}
	})

	t.Run("Users columns", func(t *testing.T) {
		cols := columns(t, db, "users")
		for _, col := range []string{"id", "username", "email", "created_at"} {
			if !cols[col] {
				t.Errorf("Expected users table to have column %s", col)
			}
		}
	})

	t.Run("Posts columns", func(t *testing.T) {
		cols := columns(t, db, "posts")
		expected := []string{"id", "title", "slug", "content", "content_hash", "status", "featured_image", "user_id", "created_at", "modified_at"}
		for _, col := range expected {
			if !cols[col] {
				t.Errorf("Expected posts table to have column %s", col)
			}
		}
	})

	t.Run("Foreign keys are enabled", func(t *testing.T) {
		var enabled int
		if err := db.QueryRow(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("Failed to check foreign keys: %v", err)
		}
		if enabled != 1 {
			t.Error("Expected foreign keys to be enabled")
		}
	})

	t.Run("Init is repeatable", func(t *testing.T) {
		if _, err := db.Exec(ctx, schema); err != nil {
			t.Errorf("Expected schema to apply twice, got %v", err)
		}
	})
}

func TestSQLiteQueryAndExec(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("Exec inserts data", func(t *testing.T) {
		result, err := db.Exec(ctx, "INSERT INTO users (id, username, email) VALUES (?, ?, ?)",
			"user-exec", "writer", testEmail)
		if err != nil {
			t.Fatalf("Failed to insert user: %v", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			t.Errorf("Failed to get rows affected: %v", err)
		}
		if rowsAffected != 1 {
			t.Errorf("Expected 1 row affected, got %d", rowsAffected)
		}
	})

	t.Run("Query retrieves data", func(t *testing.T) {
		rows, err := db.Query(ctx, "SELECT id, username, email FROM users WHERE id = ?", "user-exec")
		if err != nil {
			t.Fatalf("Failed to query user: %v", err)
		}
		defer rows.Close()

		if !rows.Next() {
			t.Fatal("Expected to find inserted user")
		}

		var id, username, email string
		if err := rows.Scan(&id, &username, &email); err != nil {
			t.Fatalf("Failed to scan user data: %v", err)
		}
		if id != "user-exec" || username != "writer" || email != testEmail {
			t.Errorf("Unexpected row: %s %s %s", id, username, email)
		}
	})

	t.Run("Insert and query posts", func(t *testing.T) {
		_, err := db.Exec(ctx, `INSERT INTO posts (id, title, slug, content, content_hash, user_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			"test-post", "Test Post", "test-post", []byte("<p>Test</p>"), "hash123", "user-exec")
		if err != nil {
			t.Fatalf("Failed to insert post: %v", err)
		}

		var title, status string
		err = db.QueryRow(ctx, "SELECT title, status FROM posts WHERE id = ?", "test-post").Scan(&title, &status)
		if err != nil {
			t.Fatalf("Failed to query post: %v", err)
		}
		if title != "Test Post" {
			t.Errorf("Expected title 'Test Post', got %s", title)
		}
		if status != "active" {
			t.Errorf("Expected default status 'active', got %s", status)
		}
	})
}

func TestSQLiteErrorHandling(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))
	ctx := context.Background()

	t.Run("Query on uninitialized database", func(t *testing.T) {
		db := NewSQLite(MemoryPath)
		defer db.Close()

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic when querying uninitialized database")
			}
		}()

		db.Query(ctx, select1) // This will panic due to nil connection
	})

	t.Run("Invalid SQL", func(t *testing.T) {
		db := newTestDB(t)

		if _, err := db.Query(ctx, "INVALID SQL SYNTAX"); err == nil {
			t.Error("Expected error for invalid SQL query")
		}
		if _, err := db.Exec(ctx, "INVALID SQL SYNTAX"); err == nil {
			t.Error("Expected error for invalid SQL exec")
		}
	})

	t.Run("Unique violation", func(t *testing.T) {
		db := newTestDB(t)

		if _, err := db.Exec(ctx, insertUserUsername, "user1", "same"); err != nil {
			t.Fatalf("Failed to insert first user: %v", err)
		}

		_, err := db.Exec(ctx, insertUserUsername, "user2", "same")
		if err == nil {
			t.Fatal("Expected constraint violation error for duplicate username")
		}
		if !IsUniqueViolation(err) {
			t.Errorf("Expected unique violation, got: %v", err)
		}
	})

	t.Run("Primary key violation", func(t *testing.T) {
		db := newTestDB(t)

		_, _ = db.Exec(ctx, insertUserUsername, "dup", "a")
		_, err := db.Exec(ctx, insertUserUsername, "dup", "b")
		if !IsUniqueViolation(err) {
			t.Errorf("Expected unique violation, got: %v", err)
		}
	})

	t.Run("Other errors are not unique violations", func(t *testing.T) {
		db := newTestDB(t)

		_, err := db.Exec(ctx, "INSERT INTO posts (id) VALUES (?)", "no-title")
		if err == nil {
			t.Fatal("Expected NOT NULL violation")
		}
		if IsUniqueViolation(err) {
			t.Errorf("Expected NOT NULL violation not to count as unique, got %v", err)
		}
		if IsUniqueViolation(nil) {
			t.Error("Expected nil not to be a unique violation")
		}
	})
}

func TestSQLiteFileDatabase(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quill.db")

	db := NewSQLite(path)
	if err := db.InitDb(ctx); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	if _, err := db.Exec(ctx, insertUserUsername, "persisted", "keeper"); err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	reopened := NewSQLite(path)
	if err := reopened.InitDb(ctx); err != nil {
		t.Fatalf(failedToInitDB, err)
	}
	defer reopened.Close()

	var username string
	if err := reopened.QueryRow(ctx, "SELECT username FROM users WHERE id = ?", "persisted").Scan(&username); err != nil {
		t.Fatalf("Expected user to survive reopen: %v", err)
	}
	if username != "keeper" {
		t.Errorf("Expected username 'keeper', got %q", username)
	}
}

func TestSQLiteClose(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	t.Run("Close uninitialized database", func(t *testing.T) {
		db := NewSQLite(MemoryPath)
		if err := db.Close(); err != nil {
			t.Errorf("Expected no error closing uninitialized database, got: %v", err)
		}
	})

	t.Run("Close database twice", func(t *testing.T) {
		db := NewSQLite(MemoryPath)
		if err := db.InitDb(context.Background()); err != nil {
			t.Fatalf(failedToInitDB, err)
		}
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database first time: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database second time: %v", err)
		}
		if err := db.Get().Ping(); err == nil {
			t.Error("Expected connection to be closed")
		}
	})
}
