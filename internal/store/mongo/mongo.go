// Package mongo is the MongoDB backend of the document store. Batches run in a
// multi-document transaction, so the server must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gigbook/internal/models"
	"gigbook/internal/store"
)

// Store implements store.Store on MongoDB.
type Store struct {
	client    *mongo.Client
	gigs      *mongo.Collection
	bookings  *mongo.Collection
	comedians *mongo.Collection
	logger    zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// bookingDoc adds the flag backing the partial unique index on active bookings.
type bookingDoc struct {
	models.Booking `bson:",inline"`
	Active         bool `bson:"active"`
}

func toBookingDoc(b *models.Booking) bookingDoc {
	return bookingDoc{Booking: *b, Active: b.Status.Active()}
}

// Open connects to uri and prepares the collections of database.
func Open(ctx context.Context, uri, database string, logger zerolog.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		gigs:      db.Collection("gigs"),
		bookings:  db.Collection("bookings"),
		comedians: db.Collection("comedians"),
		logger:    logger.With().Str("component", "mongo").Logger(),
	}
	if err := s.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	s.logger.Info().Str("database", database).Msg("mongodb initialized")
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.gigs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.bookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "gigId", Value: 1}}},
		{Keys: bson.D{{Key: "comedianId", Value: 1}}},
		{
			Keys: bson.D{{Key: "gigId", Value: 1}, {Key: "comedianId", Value: 1}},
			Options: options.Index().
				SetName("ux_bookings_active").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) GetGig(ctx context.Context, id string) (*models.Gig, error) {
	var g models.Gig
	if err := s.gigs.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, mapError(err)
	}
	return &g, nil
}

func (s *Store) ListGigs(ctx context.Context, filter store.GigFilter) ([]models.Gig, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.gigs.Find(ctx, gigQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	gigs := make([]models.Gig, 0)
	if err := cur.All(ctx, &gigs); err != nil {
		return nil, err
	}
	return gigs, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var d bookingDoc
	if err := s.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, mapError(err)
	}
	return &d.Booking, nil
}

func (s *Store) ListBookings(ctx context.Context, filter store.BookingFilter) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.bookings.Find(ctx, bookingQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Booking, len(docs))
	for i := range docs {
		out[i] = docs[i].Booking
	}
	return out, nil
}

func (s *Store) GetComedian(ctx context.Context, id string) (*models.Comedian, error) {
	var c models.Comedian
	if err := s.comedians.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (s *Store) ListComedians(ctx context.Context) ([]models.Comedian, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.comedians.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Comedian, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func gigQuery(filter store.GigFilter) bson.M {
	q := bson.M{}
	if filter.FromDate != "" {
		q["date"] = bson.M{"$gte": filter.FromDate}
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	return q
}

func bookingQuery(filter store.BookingFilter) bson.M {
	q := bson.M{}
	if filter.GigID != "" {
		q["gigId"] = filter.GigID
	}
	if filter.ComedianID != "" {
		q["comedianId"] = filter.ComedianID
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q["status"] = bson.M{"$in": statuses}
	}
	return q
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	default:
		return err
	}
}
