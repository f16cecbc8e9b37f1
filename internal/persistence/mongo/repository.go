// Package mongo stores activities as documents keyed by activity name.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"example.com/signup/internal/domain"
)

// activityDocument is the stored shape. The activity name doubles as _id so the
// store itself enforces uniqueness.
type activityDocument struct {
	Name            string   `bson:"_id"`
	Description     string   `bson:"description"`
	Schedule        string   `bson:"schedule"`
	MaxParticipants int      `bson:"max_participants"`
	Participants    []string `bson:"participants"`
}

func fromDomain(a domain.Activity) activityDocument {
	participants := a.Participants
	if participants == nil {
		participants = []string{}
	}
	return activityDocument{
		Name:            a.Name,
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		Participants:    participants,
	}
}

func (d activityDocument) toDomain() (domain.Activity, error) {
	a := domain.Activity{
		Name:            d.Name,
		Description:     d.Description,
		Schedule:        d.Schedule,
		MaxParticipants: d.MaxParticipants,
		Participants:    d.Participants,
	}
	if a.Participants == nil {
		a.Participants = []string{}
	}
	if err := a.Validate(); err != nil {
		return domain.Activity{}, fmt.Errorf("decode activity document: %w", err)
	}
	return a, nil
}

// Repository implements domain.ActivityRepository on a MongoDB collection.
type Repository struct {
	coll *mongo.Collection
}

// NewRepository constructs a Repository over coll.
func NewRepository(coll *mongo.Collection) *Repository {
	return &Repository{coll: coll}
}

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Count implements domain.ActivityRepository.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.D{})
}

// Insert implements domain.ActivityRepository.
func (r *Repository) Insert(ctx context.Context, activity domain.Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, fromDomain(activity)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateActivity
		}
		return err
	}
	return nil
}

// List implements domain.ActivityRepository using the collection's natural order.
func (r *Repository) List(ctx context.Context) ([]domain.Activity, error) {
	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.Activity, 0, len(docs))
	for _, doc := range docs {
		a, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(ctx context.Context, name string) (*domain.Activity, error) {
	return decodeOptional(r.coll.FindOne(ctx, bson.M{"_id": name}))
}

// AddParticipant pushes email only while it is absent and the roster is below max_participants.
func (r *Repository) AddParticipant(ctx context.Context, name, email string) (*domain.Activity, error) {
	filter := bson.M{
		"_id":          name,
		"participants": bson.M{"$ne": email},
		"$expr": bson.M{
			"$lt": bson.A{bson.M{"$size": "$participants"}, "$max_participants"},
		},
	}
	update := bson.M{"$push": bson.M{"participants": email}}
	return r.findAndUpdate(ctx, filter, update)
}

// RemoveParticipant pulls email only while it is present.
func (r *Repository) RemoveParticipant(ctx context.Context, name, email string) (*domain.Activity, error) {
	filter := bson.M{"_id": name, "participants": email}
	update := bson.M{"$pull": bson.M{"participants": email}}
	return r.findAndUpdate(ctx, filter, update)
}

func (r *Repository) findAndUpdate(ctx context.Context, filter, update bson.M) (*domain.Activity, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOptional(r.coll.FindOneAndUpdate(ctx, filter, update, opts))
}

func decodeOptional(res *mongo.SingleResult) (*domain.Activity, error) {
	var doc activityDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	a, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}
