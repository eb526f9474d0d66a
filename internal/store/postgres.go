package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/bookreview/internal/models"
)

const pgForeignKeyViolation = "23503"

// Foreign keys of the reviews table. The names are spelled out in Migrate so
// AddReview can tell which side of the review is missing.
const (
	reviewsUserFK = "reviews_user_id_fkey"
	reviewsBookFK = "reviews_book_id_fkey"
)

// PostgresStore handles users, books and reviews against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the three tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			user_id  SERIAL PRIMARY KEY,
			username VARCHAR(255) UNIQUE NOT NULL,
			password VARCHAR(255) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS books (
			book_id SERIAL PRIMARY KEY,
			isbn    VARCHAR(32) UNIQUE NOT NULL,
			title   TEXT NOT NULL,
			author  TEXT NOT NULL,
			year    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS reviews (
			review_id  SERIAL PRIMARY KEY,
			user_id    INTEGER NOT NULL CONSTRAINT reviews_user_id_fkey REFERENCES users (user_id),
			book_id    INTEGER NOT NULL CONSTRAINT reviews_book_id_fkey REFERENCES books (book_id),
			rating     INTEGER NOT NULL,
			review     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, book_id)
		)
	`)
	return err
}

// Ping checks the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a user and returns it with its generated id. A taken
// username yields ErrUsernameTaken.
func (s *PostgresStore) CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	u := models.User{Username: username}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password)
		 VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING user_id`,
		username, hashedPassword,
	).Scan(&u.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername returns the user with exactly this username, password
// hash included.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, password FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// SearchBooks matches query against title, author, year and isbn and orders
// the result by year, newest first.
func (s *PostgresStore) SearchBooks(ctx context.Context, query string) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT book_id, isbn, title, author, year FROM books
		 WHERE title ILIKE $1 OR author ILIKE $1 OR year::text LIKE $1 OR isbn ILIKE $1
		 ORDER BY year DESC, book_id`,
		"%"+escapeLike(query)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	books, err := pgx.CollectRows(rows, scanBook)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) GetBookByID(ctx context.Context, id int64) (*models.Book, error) {
	return s.getBook(ctx, `SELECT book_id, isbn, title, author, year FROM books WHERE book_id = $1`, id)
}

func (s *PostgresStore) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	return s.getBook(ctx, `SELECT book_id, isbn, title, author, year FROM books WHERE isbn = $1`, isbn)
}

func (s *PostgresStore) getBook(ctx context.Context, sql string, arg any) (*models.Book, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBook)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// ListReviews returns the reviews of a book with reviewer names, newest
// review first.
func (s *PostgresStore) ListReviews(ctx context.Context, bookID int64) ([]models.Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.review_id, r.user_id, r.book_id, u.username, r.rating, r.review, r.created_at
		 FROM reviews r JOIN users u ON u.user_id = r.user_id
		 WHERE r.book_id = $1
		 ORDER BY r.review_id DESC`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	reviews, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Review, error) {
		var r models.Review
		err := row.Scan(&r.ID, &r.UserID, &r.BookID, &r.Username, &r.Rating, &r.Body, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// AddReview inserts a review in one statement. The (user_id, book_id)
// unique constraint makes a second review by the same user a no-op that is
// reported as ErrAlreadyReviewed.
func (s *PostgresStore) AddReview(ctx context.Context, in models.NewReview) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reviews (user_id, book_id, rating, review)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, book_id) DO NOTHING
		 RETURNING review_id`,
		in.UserID, in.BookID, in.Rating, in.Body,
	).Scan(&id)
	if err != nil {
		return 0, reviewInsertError(err)
	}
	return id, nil
}

// reviewInsertError maps a failed review insert to the store sentinels.
func reviewInsertError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyReviewed
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		switch pgErr.ConstraintName {
		case reviewsBookFK:
			return ErrBookNotFound
		case reviewsUserFK:
			return ErrUserNotFound
		}
	}
	return fmt.Errorf("add review: %w", err)
}

// InsertBooks writes a batch of catalog rows in a single transaction.
// Rows whose isbn already exists are skipped; the number actually inserted
// is returned. onInsert, when non-nil, is called for every inserted row.
func (s *PostgresStore) InsertBooks(ctx context.Context, books []models.Book, onInsert func(models.Book)) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, b := range books {
		tag, err := tx.Exec(ctx,
			`INSERT INTO books (isbn, title, author, year)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (isbn) DO NOTHING`,
			b.ISBN, b.Title, b.Author, b.Year,
		)
		if err != nil {
			return 0, fmt.Errorf("insert book %s: %w", b.ISBN, err)
		}
		if tag.RowsAffected() == 1 {
			inserted++
			if onInsert != nil {
				onInsert(b)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func scanBook(row pgx.CollectableRow) (models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Year)
	return b, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE metacharacters in user input match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
