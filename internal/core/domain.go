package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxTitleLength = 100
	MaxNotesLength = 500
)

type (
	// Transaction is a single income or expense entry belonging to one user.
	Transaction struct {
		ID        string          `json:"id"`
		Owner     string          `json:"user"`
		Title     string          `json:"title"`
		Amount    decimal.Decimal `json:"amount"`
		Type      Type            `json:"type"`
		Category  Category        `json:"category"`
		Date      time.Time       `json:"date"`
		Notes     string          `json:"notes"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}

	// NewTransaction holds the caller-controlled fields of a transaction to
	// create. Zero Type means expense and zero Date means "now".
	NewTransaction struct {
		Title    string
		Amount   decimal.Decimal
		Type     Type
		Category Category
		Date     time.Time
		Notes    string
	}

	// Patch is a partial update. Nil fields are left untouched; a non-nil
	// empty Notes clears the notes.
	Patch struct {
		Title    *string
		Amount   *decimal.Decimal
		Type     *Type
		Category *Category
		Date     *time.Time
		Notes    *string
	}

	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

// Validate checks the invariants of a transaction about to be created.
func (n NewTransaction) Validate() error {
	ve := &ValidationError{}
	validateTitle(ve, n.Title)
	validateAmount(ve, n.Amount)
	if !n.Category.Valid() {
		ve.Add("category", "category is required")
	}
	if n.Type != typeInvalid && !n.Type.Valid() {
		ve.Add("type", "type must be expense or income")
	}
	validateNotes(ve, n.Notes)
	return ve.Err()
}

// Build turns validated input into a transaction for owner, filling in the
// defaults and timestamps.
func (n NewTransaction) Build(owner string, now time.Time) Transaction {
	t := Transaction{
		Owner:     owner,
		Title:     strings.TrimSpace(n.Title),
		Amount:    n.Amount.Round(2),
		Type:      n.Type,
		Category:  n.Category,
		Date:      n.Date,
		Notes:     strings.TrimSpace(n.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !t.Type.Valid() {
		t.Type = TypeExpense
	}
	if t.Date.IsZero() {
		t.Date = now
	}
	return t
}

// Validate checks only the fields the patch supplies.
func (p Patch) Validate() error {
	ve := &ValidationError{}
	if p.Title != nil {
		validateTitle(ve, *p.Title)
	}
	if p.Amount != nil {
		validateAmount(ve, *p.Amount)
	}
	if p.Type != nil && !p.Type.Valid() {
		ve.Add("type", "type must be expense or income")
	}
	if p.Category != nil && !p.Category.Valid() {
		ve.Add("category", "invalid category")
	}
	if p.Date != nil && p.Date.IsZero() {
		ve.Add("date", "invalid date")
	}
	if p.Notes != nil {
		validateNotes(ve, *p.Notes)
	}
	return ve.Err()
}

// Apply returns t with the supplied fields replaced and UpdatedAt set to now.
// Owner, ID and CreatedAt never change.
func (p Patch) Apply(t Transaction, now time.Time) Transaction {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Amount != nil {
		t.Amount = p.Amount.Round(2)
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Notes != nil {
		t.Notes = strings.TrimSpace(*p.Notes)
	}
	t.UpdatedAt = now
	return t
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Amount == nil && p.Type == nil &&
		p.Category == nil && p.Date == nil && p.Notes == nil
}

func validateTitle(ve *ValidationError, title string) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		ve.Add("title", "title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		ve.Add("title", "title cannot exceed 100 characters")
	}
}

func validateAmount(ve *ValidationError, amount decimal.Decimal) {
	if _, err := NormalizeAmount(amount); err != nil {
		ve.Add("amount", "amount must be greater than 0")
	}
}

func validateNotes(ve *ValidationError, notes string) {
	if utf8.RuneCountInString(strings.TrimSpace(notes)) > MaxNotesLength {
		ve.Add("notes", "notes cannot exceed 500 characters")
	}
}
