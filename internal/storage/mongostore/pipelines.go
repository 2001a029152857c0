package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"fintrack/internal/core"
)

func matchStage(match bson.D) bson.D {
	return bson.D{{Key: "$match", Value: match}}
}

func totalsByTypePipeline(owner primitive.ObjectID, since time.Time) mongo.Pipeline {
	match := bson.D{{Key: "user", Value: owner}}
	if !since.IsZero() {
		match = append(match, bson.E{Key: "date", Value: bson.D{{Key: "$gte", Value: since}}})
	}
	return mongo.Pipeline{
		matchStage(match),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$type"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func categoryTotalsPipeline(owner primitive.ObjectID, typ core.Type, limit int) mongo.Pipeline {
	p := mongo.Pipeline{
		matchStage(bson.D{{Key: "user", Value: owner}, {Key: "type", Value: typ.String()}}),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: limit}})
	}
	return p
}

func monthlyTotalsPipeline(owner primitive.ObjectID, since time.Time, tz string) mongo.Pipeline {
	datePart := func(op string) bson.D {
		return bson.D{{Key: op, Value: bson.D{{Key: "date", Value: "$date"}, {Key: "timezone", Value: tz}}}}
	}
	return mongo.Pipeline{
		matchStage(bson.D{
			{Key: "user", Value: owner},
			{Key: "date", Value: bson.D{{Key: "$gte", Value: since}}},
		}),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: datePart("$year")},
				{Key: "month", Value: datePart("$month")},
				{Key: "type", Value: "$type"},
			}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	}
}
