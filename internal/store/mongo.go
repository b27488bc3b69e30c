package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

const mongoCollection = "monthly_metrics"

type metricDoc struct {
	DistrictCode              string  `bson:"district_code"`
	Month                     string  `bson:"month"`
	JobCardsIssued            int64   `bson:"job_cards_issued"`
	ActiveWorkers             int64   `bson:"active_workers"`
	PersonDaysGenerated       int64   `bson:"person_days_generated"`
	AverageDaysPerHousehold   float64 `bson:"average_days_per_household"`
	WorksCompleted            int64   `bson:"works_completed"`
	WorksOngoing              int64   `bson:"works_ongoing"`
	ExpenditureCrores         float64 `bson:"expenditure_crores"`
	WomenParticipationPercent float64 `bson:"women_participation_percent"`
	ScStParticipationPercent  float64 `bson:"sc_st_participation_percent"`
	IngestedAtNanos           int64   `bson:"ingested_at_ns"`
}

func toDoc(m domain.MonthlyMetric) metricDoc {
	return metricDoc{
		DistrictCode:              m.DistrictCode,
		Month:                     m.Month.String(),
		JobCardsIssued:            m.JobCardsIssued,
		ActiveWorkers:             m.ActiveWorkers,
		PersonDaysGenerated:       m.PersonDaysGenerated,
		AverageDaysPerHousehold:   m.AverageDaysPerHousehold,
		WorksCompleted:            m.WorksCompleted,
		WorksOngoing:              m.WorksOngoing,
		ExpenditureCrores:         m.ExpenditureCrores,
		WomenParticipationPercent: m.WomenParticipationPercent,
		ScStParticipationPercent:  m.ScStParticipationPercent,
		IngestedAtNanos:           m.IngestedAt.UnixNano(),
	}
}

func (d metricDoc) toMetric() (domain.MonthlyMetric, error) {
	month, err := domain.ParseMonth(d.Month)
	if err != nil {
		return domain.MonthlyMetric{}, err
	}
	return domain.MonthlyMetric{
		DistrictCode:              d.DistrictCode,
		Month:                     month,
		JobCardsIssued:            d.JobCardsIssued,
		ActiveWorkers:             d.ActiveWorkers,
		PersonDaysGenerated:       d.PersonDaysGenerated,
		AverageDaysPerHousehold:   d.AverageDaysPerHousehold,
		WorksCompleted:            d.WorksCompleted,
		WorksOngoing:              d.WorksOngoing,
		ExpenditureCrores:         d.ExpenditureCrores,
		WomenParticipationPercent: d.WomenParticipationPercent,
		ScStParticipationPercent:  d.ScStParticipationPercent,
		IngestedAt:                time.Unix(0, d.IngestedAtNanos).UTC(),
	}, nil
}

// MongoBackend stores one document per (district_code, month), guarded by a
// unique index.
type MongoBackend struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects, pings and ensures the unique key index.
func OpenMongo(ctx context.Context, uri, database string) (*MongoBackend, error) {
	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetRetryReads(true).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(mongoCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "district_code", Value: 1},
			{Key: "month", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("district_month_idx"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo index: %w", err)
	}

	return &MongoBackend{client: client, coll: coll}, nil
}

func (b *MongoBackend) findOne(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (domain.MonthlyMetric, error) {
	var doc metricDoc
	err := b.coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.MonthlyMetric{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MonthlyMetric{}, fmt.Errorf("find metric: %w", err)
	}
	return doc.toMetric()
}

func (b *MongoBackend) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]domain.MonthlyMetric, error) {
	cursor, err := b.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find metrics: %w", err)
	}
	var docs []metricDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	out := make([]domain.MonthlyMetric, 0, len(docs))
	for _, d := range docs {
		m, err := d.toMetric()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *MongoBackend) Get(ctx context.Context, code string, month domain.Month) (domain.MonthlyMetric, error) {
	return b.findOne(ctx, bson.D{{Key: "district_code", Value: code}, {Key: "month", Value: month.String()}})
}

func (b *MongoBackend) Latest(ctx context.Context, code string) (domain.MonthlyMetric, error) {
	return b.findOne(ctx,
		bson.D{{Key: "district_code", Value: code}},
		options.FindOne().SetSort(bson.D{{Key: "month", Value: -1}}),
	)
}

func (b *MongoBackend) Range(ctx context.Context, code string, from, to domain.Month) ([]domain.MonthlyMetric, error) {
	filter := bson.D{
		{Key: "district_code", Value: code},
		{Key: "month", Value: bson.D{{Key: "$gte", Value: from.String()}, {Key: "$lte", Value: to.String()}}},
	}
	return b.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "month", Value: 1}}))
}

func (b *MongoBackend) Recent(ctx context.Context, code string, n int) ([]domain.MonthlyMetric, error) {
	out, err := b.find(ctx,
		bson.D{{Key: "district_code", Value: code}},
		options.Find().SetSort(bson.D{{Key: "month", Value: -1}}).SetLimit(int64(n)),
	)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// Put upserts only over an equal-or-older ingestion. When a newer document
// exists the filter misses, the upsert collides with the unique index and
// the write is dropped.
func (b *MongoBackend) Put(ctx context.Context, m domain.MonthlyMetric) error {
	doc := toDoc(m)
	filter := bson.D{
		{Key: "district_code", Value: doc.DistrictCode},
		{Key: "month", Value: doc.Month},
		{Key: "ingested_at_ns", Value: bson.D{{Key: "$lte", Value: doc.IngestedAtNanos}}},
	}
	_, err := b.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: doc}}, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}
	return nil
}

func (b *MongoBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

func (b *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
