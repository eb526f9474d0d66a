package books

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ayush/bookreview/internal/middleware"
	"github.com/ayush/bookreview/internal/models"
	"github.com/ayush/bookreview/internal/session"
	"github.com/ayush/bookreview/internal/store"
	"github.com/ayush/bookreview/internal/web"
)

// BookStore defines the catalog and review persistence the handlers need.
type BookStore interface {
	SearchBooks(ctx context.Context, query string) ([]models.Book, error)
	GetBookByID(ctx context.Context, id int64) (*models.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error)
	ListReviews(ctx context.Context, bookID int64) ([]models.Review, error)
	AddReview(ctx context.Context, in models.NewReview) (int64, error)
}

// RatingLookup fetches third-party rating aggregates by ISBN.
type RatingLookup interface {
	Lookup(ctx context.Context, isbn string) (*models.Rating, error)
}

// Handler holds the catalog HTTP handlers.
type Handler struct {
	books   BookStore
	ratings RatingLookup
	render  *web.Renderer
}

func NewHandler(books BookStore, ratings RatingLookup, render *web.Renderer) *Handler {
	return &Handler{books: books, ratings: ratings, render: render}
}

// DetailPage is the data of book.html. Rating is nil when the rating
// service could not answer.
type DetailPage struct {
	Book    models.Book
	Reviews []models.Review
	Rating  *models.Rating
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// SearchPage shows the empty search form.
func (h *Handler) SearchPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "search.html", nil)
}

// Search lists every book matching the submitted query.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.PostFormValue("search")

	found, err := h.books.SearchBooks(r.Context(), query)
	if err != nil {
		h.internalError(w, r, err, "search failed")
		return
	}
	if len(found) == 0 {
		sess := session.FromContext(r.Context())
		sess.AddFlash("Book not found!")
		h.redirect(w, r, "/")
		return
	}

	h.render.Render(w, r, http.StatusOK, "search.html", found)
}

// Detail shows one book, its reviews and its third-party rating.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.render.Apology(w, r, "No such book", http.StatusNotFound)
		return
	}

	book, err := h.books.GetBookByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.render.Apology(w, r, "No such book", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, err, "get book failed")
		return
	}

	reviews, err := h.books.ListReviews(r.Context(), book.ID)
	if err != nil {
		h.internalError(w, r, err, "list reviews failed")
		return
	}

	h.render.Render(w, r, http.StatusOK, "book.html", DetailPage{
		Book:    *book,
		Reviews: reviews,
		Rating:  h.rating(r.Context(), book.ISBN),
	})
}

// API returns a book and its rating aggregates as JSON.
func (h *Handler) API(w http.ResponseWriter, r *http.Request) {
	book, err := h.books.GetBookByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "No such book", "code": http.StatusNotFound})
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("api get book failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Internal Server Error", "code": http.StatusInternalServerError})
		return
	}

	resp := models.BookAPIResponse{
		Title:  book.Title,
		Author: book.Author,
		Year:   book.Year,
		ISBN:   book.ISBN,
	}
	if rating := h.rating(r.Context(), book.ISBN); rating != nil {
		count, avg := rating.ReviewsCount, rating.AverageRating
		resp.ReviewsCount = &count
		resp.AverageScore = &avg
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddReview stores the logged-in user's review of a book. A user can review
// a book once.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	body := r.PostFormValue("review")
	if body == "" {
		h.render.Apology(w, r, "must add a review", http.StatusBadRequest)
		return
	}
	rawID := r.PostFormValue("book_id")
	bookID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		h.render.Apology(w, r, "invalid book", http.StatusBadRequest)
		return
	}
	rating, err := strconv.Atoi(r.PostFormValue("rating"))
	if err != nil {
		h.render.Apology(w, r, "invalid rating", http.StatusBadRequest)
		return
	}

	_, err = h.books.AddReview(r.Context(), models.NewReview{
		UserID: middleware.UserIDFromContext(r.Context()),
		BookID: bookID,
		Rating: rating,
		Body:   body,
	})
	switch {
	case errors.Is(err, store.ErrAlreadyReviewed):
		h.render.Apology(w, r, "Already Reviewed", http.StatusForbidden)
		return
	case errors.Is(err, store.ErrBookNotFound):
		h.render.Apology(w, r, "No such book", http.StatusNotFound)
		return
	case errors.Is(err, store.ErrUserNotFound):
		// The session outlived its user row.
		session.FromContext(r.Context()).Clear()
		h.redirect(w, r, "/login")
		return
	case err != nil:
		h.internalError(w, r, err, "add review failed")
		return
	}

	session.FromContext(r.Context()).AddFlash("Review added!")
	h.redirect(w, r, "/book/"+strconv.FormatInt(bookID, 10))
}

// rating never fails the page: without an answer the rating is left out.
func (h *Handler) rating(ctx context.Context, isbn string) *models.Rating {
	rating, err := h.ratings.Lookup(ctx, isbn)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("isbn", isbn).Msg("rating lookup failed")
		return nil
	}
	return rating
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, to string) {
	if err := session.FromContext(r.Context()).Save(r.Context(), w); err != nil {
		h.internalError(w, r, err, "session save failed")
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log.Ctx(r.Context()).Error().Err(err).Msg(msg)
	h.render.Apology(w, r, "Internal Server Error", http.StatusInternalServerError)
}
