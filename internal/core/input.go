package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// ParseDate accepts a calendar day ("2006-01-02", midnight in loc) or an
// RFC 3339 timestamp.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}

// TransactionInput is the loosely typed request body for create and update.
// Nil means the field was absent.
type TransactionInput struct {
	Title    *string          `json:"title"`
	Amount   *decimal.Decimal `json:"amount"`
	Type     *string          `json:"type"`
	Category *string          `json:"category"`
	Date     *string          `json:"date"`
	Notes    *string          `json:"notes"`
}

// ToNew converts the input for a create, reporting all problems at once.
func (in TransactionInput) ToNew(loc *time.Location) (NewTransaction, error) {
	ve := &ValidationError{}
	var n NewTransaction

	if in.Title == nil {
		ve.Add("title", "title is required")
	} else {
		n.Title = *in.Title
	}
	if in.Amount == nil {
		ve.Add("amount", "amount is required")
	} else {
		n.Amount = *in.Amount
	}
	if in.Category == nil || strings.TrimSpace(*in.Category) == "" {
		ve.Add("category", "category is required")
	} else if c, err := ParseCategory(*in.Category); err != nil {
		ve.Add("category", "invalid category")
	} else {
		n.Category = c
	}
	if in.Type != nil && strings.TrimSpace(*in.Type) != "" {
		if t, err := ParseType(*in.Type); err != nil {
			ve.Add("type", "type must be expense or income")
		} else {
			n.Type = t
		}
	}
	if in.Date != nil && strings.TrimSpace(*in.Date) != "" {
		if d, err := ParseDate(*in.Date, loc); err != nil {
			ve.Add("date", "invalid date")
		} else {
			n.Date = d
		}
	}
	if in.Notes != nil {
		n.Notes = *in.Notes
	}

	if len(ve.Fields) > 0 {
		return NewTransaction{}, ve
	}
	if err := n.Validate(); err != nil {
		return NewTransaction{}, err
	}
	return n, nil
}

// ToPatch converts the input for an update. Only supplied fields are checked.
func (in TransactionInput) ToPatch(loc *time.Location) (Patch, error) {
	ve := &ValidationError{}
	var p Patch

	p.Title = in.Title
	p.Amount = in.Amount
	p.Notes = in.Notes
	if in.Category != nil {
		if c, err := ParseCategory(*in.Category); err != nil {
			ve.Add("category", "invalid category")
		} else {
			p.Category = &c
		}
	}
	if in.Type != nil {
		if t, err := ParseType(*in.Type); err != nil {
			ve.Add("type", "type must be expense or income")
		} else {
			p.Type = &t
		}
	}
	if in.Date != nil {
		if d, err := ParseDate(*in.Date, loc); err != nil {
			ve.Add("date", "invalid date")
		} else {
			p.Date = &d
		}
	}

	if len(ve.Fields) > 0 {
		return Patch{}, ve
	}
	if err := p.Validate(); err != nil {
		return Patch{}, err
	}
	return p, nil
}
