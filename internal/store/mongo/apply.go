package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"gigbook/internal/store"
)

// Apply runs the batch inside a transaction.
func (s *Store) Apply(ctx context.Context, b *store.Batch) error {
	if b.Empty() {
		return nil
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for i, op := range b.Ops {
			if err := s.applyOp(sc, op); err != nil {
				return nil, fmt.Errorf("op %d %s %s: %w", i, op.Kind, op.ID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	b.Committed()
	return nil
}

func (s *Store) applyOp(ctx context.Context, op store.Op) error {
	switch op.Kind {
	case store.OpInsertGig:
		g := *op.Gig
		g.Version = 1
		_, err := s.gigs.InsertOne(ctx, g)
		return mapError(err)

	case store.OpUpdateGig:
		g := *op.Gig
		g.Version++
		res, err := s.gigs.ReplaceOne(ctx, bson.M{"_id": op.ID, "version": op.Gig.Version}, g)
		if err != nil {
			return mapError(err)
		}
		return s.checkMatched(ctx, s.gigs, res, op.ID)

	case store.OpDeleteGig:
		res, err := s.gigs.DeleteOne(ctx, bson.M{"_id": op.ID})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return store.ErrNotFound
		}
		return nil

	case store.OpInsertBooking:
		d := toBookingDoc(op.Booking)
		d.Version = 1
		_, err := s.bookings.InsertOne(ctx, d)
		return mapError(err)

	case store.OpUpdateBooking:
		d := toBookingDoc(op.Booking)
		d.Version++
		res, err := s.bookings.ReplaceOne(ctx, bson.M{"_id": op.ID, "version": op.Booking.Version}, d)
		if err != nil {
			return mapError(err)
		}
		return s.checkMatched(ctx, s.bookings, res, op.ID)

	case store.OpDeleteGigBookings:
		_, err := s.bookings.DeleteMany(ctx, bson.M{"gigId": op.ID})
		return err

	case store.OpPutComedian:
		c := *op.Comedian
		c.Version++
		if op.Comedian.Version == 0 {
			_, err := s.comedians.InsertOne(ctx, c)
			return mapError(err)
		}
		res, err := s.comedians.ReplaceOne(ctx, bson.M{"_id": op.ID, "version": op.Comedian.Version}, c)
		if err != nil {
			return mapError(err)
		}
		return s.checkMatched(ctx, s.comedians, res, op.ID)

	default:
		return fmt.Errorf("unsupported op %d", op.Kind)
	}
}

// checkMatched tells a missing document from a stale version.
func (s *Store) checkMatched(ctx context.Context, coll *mongo.Collection, res *mongo.UpdateResult, id string) error {
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrVersionConflict
}
