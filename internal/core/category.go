package core

import (
	"fmt"
	"strings"
)

// Type separates money going out from money coming in. The zero value is not
// a valid type.
type Type uint8

const (
	typeInvalid Type = iota
	TypeExpense
	TypeIncome
)

var typeLabels = [...]string{"", "expense", "income"}

func (t Type) Valid() bool {
	return t > typeInvalid && int(t) < len(typeLabels)
}

func (t Type) String() string {
	if !t.Valid() {
		return ""
	}
	return typeLabels[t]
}

// ParseType accepts the lowercase labels "expense" and "income".
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i := 1; i < len(typeLabels); i++ {
		if typeLabels[i] == s {
			return Type(i), nil
		}
	}
	return typeInvalid, fmt.Errorf("unknown transaction type %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid transaction type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Category is one of a fixed set of spending/earning labels.
type Category uint8

const (
	categoryInvalid Category = iota
	CategoryFoodDining
	CategoryTransportation
	CategoryShopping
	CategoryEntertainment
	CategoryHealthcare
	CategoryUtilities
	CategoryHousing
	CategoryEducation
	CategoryTravel
	CategoryPersonalCare
	CategoryInvestment
	CategoryIncome
	CategoryOther
)

var categoryLabels = [...]string{
	"",
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Healthcare",
	"Utilities",
	"Housing",
	"Education",
	"Travel",
	"Personal Care",
	"Investment",
	"Income",
	"Other",
}

// Categories returns every category in display order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryLabels)-1)
	for i := 1; i < len(categoryLabels); i++ {
		out = append(out, Category(i))
	}
	return out
}

func (c Category) Valid() bool {
	return c > categoryInvalid && int(c) < len(categoryLabels)
}

func (c Category) String() string {
	if !c.Valid() {
		return ""
	}
	return categoryLabels[c]
}

// ParseCategory matches a label exactly (surrounding spaces ignored).
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for i := 1; i < len(categoryLabels); i++ {
		if categoryLabels[i] == s {
			return Category(i), nil
		}
	}
	return categoryInvalid, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
