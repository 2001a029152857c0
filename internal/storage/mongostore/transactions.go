package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fintrack/internal/core"
	"fintrack/internal/query"
)

func ownerID(owner string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(owner)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid owner id %q: %w", owner, err)
	}
	return oid, nil
}

// scope resolves the {_id, user} pair. A malformed id cannot match anything,
// so it reports ErrNotFound rather than a client error.
func scope(owner, id string) (bson.D, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, core.ErrNotFound
	}
	return bson.D{{Key: "_id", Value: oid}, {Key: "user", Value: uid}}, nil
}

func (s *Store) FindTransactions(ctx context.Context, owner string, spec query.Spec) ([]core.Transaction, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	filter, err := buildFilter(uid, spec.Filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(buildSort(spec.Sort)).
		SetSkip(int64(spec.Offset())).
		SetLimit(int64(spec.Limit))

	cur, err := s.transactions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	var docs []txDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		t, err := d.toTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) CountTransactions(ctx context.Context, owner string, f query.Filter) (int64, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return 0, err
	}
	filter, err := buildFilter(uid, f)
	if err != nil {
		return 0, err
	}
	n, err := s.transactions.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (s *Store) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	filter, err := scope(owner, id)
	if err != nil {
		return core.Transaction{}, err
	}
	var doc txDocument
	if err := s.transactions.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return doc.toTransaction()
}

func (s *Store) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = ""
	doc, err := toDocument(t)
	if err != nil {
		return core.Transaction{}, err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := s.transactions.InsertOne(ctx, doc); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to MongoDB", "id", doc.ID.Hex(), "owner", t.Owner)
	t.ID = doc.ID.Hex()
	return t, nil
}

func (s *Store) ReplaceTransaction(ctx context.Context, t core.Transaction) error {
	filter, err := scope(t.Owner, t.ID)
	if err != nil {
		return err
	}
	doc, err := toDocument(t)
	if err != nil {
		return err
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: doc.Title},
		{Key: "amount", Value: doc.Amount},
		{Key: "type", Value: doc.Type},
		{Key: "category", Value: doc.Category},
		{Key: "date", Value: doc.Date},
		{Key: "notes", Value: doc.Notes},
		{Key: "updatedAt", Value: doc.UpdatedAt},
	}}}
	res, err := s.transactions.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	filter, err := scope(owner, id)
	if err != nil {
		return core.Transaction{}, err
	}
	var doc txDocument
	if err := s.transactions.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Transaction{}, core.ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction deleted from MongoDB", "id", id, "owner", owner)
	return doc.toTransaction()
}

func (s *Store) TotalsByType(ctx context.Context, owner string, since time.Time) ([]core.TypeTotal, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Type  string               `bson:"_id"`
		Total primitive.Decimal128 `bson:"total"`
		Count int64                `bson:"count"`
	}
	if err := s.aggregate(ctx, totalsByTypePipeline(uid, since), &rows); err != nil {
		return nil, fmt.Errorf("totals by type: %w", err)
	}

	out := make([]core.TypeTotal, 0, len(rows))
	for _, r := range rows {
		typ, err := core.ParseType(r.Type)
		if err != nil {
			return nil, err
		}
		total, err := fromDecimal128(r.Total)
		if err != nil {
			return nil, err
		}
		out = append(out, core.TypeTotal{Type: typ, Total: total, Count: r.Count})
	}
	return out, nil
}

func (s *Store) CategoryTotals(ctx context.Context, owner string, typ core.Type, limit int) ([]core.CategoryTotal, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Category string               `bson:"_id"`
		Total    primitive.Decimal128 `bson:"total"`
		Count    int64                `bson:"count"`
	}
	if err := s.aggregate(ctx, categoryTotalsPipeline(uid, typ, limit), &rows); err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}

	out := make([]core.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		cat, err := core.ParseCategory(r.Category)
		if err != nil {
			return nil, err
		}
		total, err := fromDecimal128(r.Total)
		if err != nil {
			return nil, err
		}
		out = append(out, core.CategoryTotal{Category: cat, Total: total, Count: r.Count})
	}
	return out, nil
}

func (s *Store) MonthlyTotals(ctx context.Context, owner string, since time.Time, loc *time.Location) ([]core.MonthTypeTotal, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Key struct {
			Year  int    `bson:"year"`
			Month int    `bson:"month"`
			Type  string `bson:"type"`
		} `bson:"_id"`
		Total primitive.Decimal128 `bson:"total"`
	}
	if err := s.aggregate(ctx, monthlyTotalsPipeline(uid, since, timezoneName(loc, s.timezone)), &rows); err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}

	out := make([]core.MonthTypeTotal, 0, len(rows))
	for _, r := range rows {
		typ, err := core.ParseType(r.Key.Type)
		if err != nil {
			return nil, err
		}
		total, err := fromDecimal128(r.Total)
		if err != nil {
			return nil, err
		}
		out = append(out, core.MonthTypeTotal{Year: r.Key.Year, Month: time.Month(r.Key.Month), Type: typ, Total: total})
	}
	return out, nil
}

func (s *Store) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := s.transactions.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
