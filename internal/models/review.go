package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxReviewerNameLength = 100
	MaxReviewTextLength   = 500

	MinRating Rating = 10
	MaxRating Rating = 50
)

var (
	ErrInvalidReview    = errors.New("invalid review")
	ErrSentimentPairing = errors.New("review text and sentiment must be both set or both unset")
)

// Sentiment uses the same integer values as the review spreadsheet export.
type Sentiment int

const (
	SentimentNegative Sentiment = 0
	SentimentPositive Sentiment = 1
	SentimentNeutral  Sentiment = -1
)

func (s Sentiment) String() string {
	switch s {
	case SentimentPositive:
		return "positive"
	case SentimentNegative:
		return "negative"
	case SentimentNeutral:
		return "neutral"
	default:
		return fmt.Sprintf("sentiment(%d)", int(s))
	}
}

func (s Sentiment) IsValid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

// ParseSentiment accepts either the integer code or the lowercase name.
func ParseSentiment(raw string) (Sentiment, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "positive":
		return SentimentPositive, nil
	case "negative":
		return SentimentNegative, nil
	case "neutral":
		return SentimentNeutral, nil
	}

	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidReview, raw)
	}
	s := Sentiment(code)
	if !s.IsValid() {
		return 0, fmt.Errorf("%w: unknown sentiment code %d", ErrInvalidReview, code)
	}
	return s, nil
}

// SentimentFromRating is a heuristic label for reviews whose source does not
// classify sentiment: 4.0 and above is positive, 2.0 and below negative,
// anything between neutral. It is not a classification made by the source.
func SentimentFromRating(r Rating) Sentiment {
	switch {
	case r >= 40:
		return SentimentPositive
	case r <= 20:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Rating is a star rating stored in tenths, so 4.5 stars is Rating(45).
type Rating int

// RatingFromFloat rounds to one decimal place, half to even.
func RatingFromFloat(f float64) Rating {
	return Rating(math.RoundToEven(f * 10))
}

// ParseRating parses a decimal such as "4", "4.5" or "4,5".
func ParseRating(raw string) (Rating, error) {
	raw = strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: rating %q: %v", ErrInvalidReview, raw, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: rating %q is not finite", ErrInvalidReview, raw)
	}
	return RatingFromFloat(f), nil
}

func (r Rating) Float64() float64 {
	return float64(r) / 10
}

func (r Rating) String() string {
	return strconv.FormatFloat(r.Float64(), 'f', 1, 64)
}

func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

func (r Rating) MarshalJSON() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRating(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Review is a single user review. Construct it with NewReview so the
// field constraints hold.
type Review struct {
	CreatedAt    time.Time  `json:"created_at"`
	ReviewerName string     `json:"reviewer_name"`
	Rating       Rating     `json:"rating"`
	Sentiment    *Sentiment `json:"sentiment,omitempty"`
	ReviewText   *string    `json:"review_text,omitempty"`
}

func NewReview(createdAt time.Time, reviewerName string, rating Rating, text *string, sentiment *Sentiment) (Review, error) {
	r := Review{
		CreatedAt:    createdAt.UTC(),
		ReviewerName: reviewerName,
		Rating:       rating,
		ReviewText:   text,
		Sentiment:    sentiment,
	}
	if err := r.Validate(); err != nil {
		return Review{}, err
	}
	return r, nil
}

func (r Review) Validate() error {
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidReview)
	}

	nameLen := utf8.RuneCountInString(r.ReviewerName)
	if nameLen < 1 || nameLen > MaxReviewerNameLength {
		return fmt.Errorf("%w: reviewer name length %d outside 1..%d", ErrInvalidReview, nameLen, MaxReviewerNameLength)
	}

	if !r.Rating.IsValid() {
		return fmt.Errorf("%w: rating %s outside %s..%s", ErrInvalidReview, r.Rating, MinRating, MaxRating)
	}

	if r.HasText() != (r.Sentiment != nil) {
		return fmt.Errorf("%w: %w", ErrInvalidReview, ErrSentimentPairing)
	}

	if r.HasText() {
		textLen := utf8.RuneCountInString(*r.ReviewText)
		if textLen < 1 || textLen > MaxReviewTextLength {
			return fmt.Errorf("%w: review text length %d outside 1..%d", ErrInvalidReview, textLen, MaxReviewTextLength)
		}
	}

	if r.Sentiment != nil && !r.Sentiment.IsValid() {
		return fmt.Errorf("%w: unknown sentiment %d", ErrInvalidReview, int(*r.Sentiment))
	}

	return nil
}

// HasText reports whether the review carries a body.
func (r Review) HasText() bool {
	return r.ReviewText != nil
}
