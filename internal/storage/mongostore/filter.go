package mongostore

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fintrack/internal/core"
	"fintrack/internal/query"
)

var sortKeys = map[query.SortField]string{
	query.SortDate:      "date",
	query.SortAmount:    "amount",
	query.SortTitle:     "title",
	query.SortCategory:  "category",
	query.SortType:      "type",
	query.SortCreatedAt: "createdAt",
	query.SortUpdatedAt: "updatedAt",
}

// buildFilter renders the owner scope plus f as a find/match document.
// Search terms are matched literally.
func buildFilter(owner primitive.ObjectID, f query.Filter) (bson.D, error) {
	filter := bson.D{{Key: "user", Value: owner}}
	if f.MatchNone {
		return append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{}}}}), nil
	}

	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "notes", Value: re}},
			bson.D{{Key: "category", Value: re}},
		}})
	}
	if f.Category.Valid() {
		filter = append(filter, bson.E{Key: "category", Value: f.Category.String()})
	}
	if f.Type.Valid() {
		filter = append(filter, bson.E{Key: "type", Value: f.Type.String()})
	}

	if r := dateRange(f.From, f.To); len(r) > 0 {
		filter = append(filter, bson.E{Key: "date", Value: r})
	}

	var amount bson.D
	if f.MinAmount != nil {
		v, err := toDecimal128(*f.MinAmount)
		if err != nil {
			return nil, err
		}
		amount = append(amount, bson.E{Key: "$gte", Value: v})
	}
	if f.MaxAmount != nil {
		v, err := toDecimal128(*f.MaxAmount)
		if err != nil {
			return nil, err
		}
		amount = append(amount, bson.E{Key: "$lte", Value: v})
	}
	if len(amount) > 0 {
		filter = append(filter, bson.E{Key: "amount", Value: amount})
	}

	return filter, nil
}

func dateRange(from, to time.Time) bson.D {
	var r bson.D
	if !from.IsZero() {
		r = append(r, bson.E{Key: "$gte", Value: from})
	}
	if !to.IsZero() {
		r = append(r, bson.E{Key: "$lte", Value: to})
	}
	return r
}

// buildSort orders by the requested key with _id as the tiebreaker.
func buildSort(s query.Sort) bson.D {
	key, ok := sortKeys[s.Field]
	if !ok {
		key = "date"
	}
	dir := 1
	if s.Descending {
		dir = -1
	}
	return bson.D{{Key: key, Value: dir}, {Key: "_id", Value: dir}}
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert amount %s: %w", v, err)
	}
	return d, nil
}

// timezoneName returns an identifier the aggregation date operators accept.
// Olson names keep DST transitions; the fixed offset is a last resort.
func timezoneName(loc *time.Location, fallback string) string {
	if loc == nil {
		return "UTC"
	}
	name := loc.String()
	if name == "Local" && fallback != "" && fallback != "Local" {
		return fallback
	}
	if name != "Local" && name != "" {
		return name
	}
	return time.Now().In(loc).Format("-07:00")
}

type txDocument struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	User      primitive.ObjectID   `bson:"user"`
	Title     string               `bson:"title"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Type      string               `bson:"type"`
	Category  string               `bson:"category"`
	Date      time.Time            `bson:"date"`
	Notes     string               `bson:"notes"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

func toDocument(t core.Transaction) (txDocument, error) {
	owner, err := primitive.ObjectIDFromHex(t.Owner)
	if err != nil {
		return txDocument{}, fmt.Errorf("invalid owner id %q: %w", t.Owner, err)
	}
	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return txDocument{}, err
	}
	doc := txDocument{
		User:      owner,
		Title:     t.Title,
		Amount:    amount,
		Type:      t.Type.String(),
		Category:  t.Category.String(),
		Date:      t.Date,
		Notes:     t.Notes,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.ID != "" {
		if doc.ID, err = primitive.ObjectIDFromHex(t.ID); err != nil {
			return txDocument{}, core.ErrNotFound
		}
	}
	return doc, nil
}

func (d txDocument) toTransaction() (core.Transaction, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseType(d.Type)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction %s: %w", d.ID.Hex(), err)
	}
	cat, err := core.ParseCategory(d.Category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction %s: %w", d.ID.Hex(), err)
	}
	return core.Transaction{
		ID:        d.ID.Hex(),
		Owner:     d.User.Hex(),
		Title:     d.Title,
		Amount:    amount,
		Type:      typ,
		Category:  cat,
		Date:      d.Date,
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}
