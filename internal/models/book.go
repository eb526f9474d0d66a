package models

import "time"

// Book is a catalog entry loaded by the importer.
type Book struct {
	ID     int64  `json:"book_id"`
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
}

// Review is one user's review of one book, joined with the reviewer's name.
type Review struct {
	ID        int64     `json:"review_id"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Body      string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`
}

// Date renders the creation date the way the book page shows it.
func (r Review) Date() string {
	return r.CreatedAt.Format("Jan 02, 2006")
}

// NewReview is the input of an add-review action.
type NewReview struct {
	UserID int64
	BookID int64
	Rating int
	Body   string
}

// Rating is the aggregate data returned by the external rating service.
type Rating struct {
	ISBN          string
	AverageRating float64
	RatingsCount  int
	ReviewsCount  int
}

// BookAPIResponse is the body of GET /api/{isbn}. Rating fields are omitted
// when the rating service could not be reached.
type BookAPIResponse struct {
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	Year         int      `json:"year"`
	ISBN         string   `json:"isbn"`
	ReviewsCount *int     `json:"reviews_count,omitempty"`
	AverageScore *float64 `json:"average_score,omitempty"`
}
