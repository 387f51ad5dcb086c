package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/repair-shop-service/internal/domain"
)

type userDocument struct {
	ID                        primitive.ObjectID        `bson:"_id,omitempty"`
	Email                     string                    `bson:"email"`
	Password                  string                    `bson:"password"`
	FirstName                 string                    `bson:"firstName"`
	LastName                  string                    `bson:"lastName"`
	PhoneNumber               string                    `bson:"phoneNumber"`
	Address                   string                    `bson:"address"`
	IsDisabled                bool                      `bson:"isDisabled"`
	Role                      string                    `bson:"role"`
	SelectedSecurityQuestions []domain.SecurityQuestion `bson:"selectedSecurityQuestions,omitempty"`
}

type summaryDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	FirstName string             `bson:"firstName"`
	LastName  string             `bson:"lastName"`
	Email     string             `bson:"email"`
	Role      string             `bson:"role"`
}

var summaryProjection = bson.D{
	{Key: "firstName", Value: 1},
	{Key: "lastName", Value: 1},
	{Key: "email", Value: 1},
	{Key: "role", Value: 1},
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository returns a repository over the given users collection.
func NewMongoUserRepository(coll *mongo.Collection) UserRepository {
	return &mongoUserRepository{coll: coll}
}

// EnsureUserIndexes creates the unique email index for active accounts.
func EnsureUserIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("uniq_active_email").
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "isDisabled", Value: false}}),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) Insert(ctx context.Context, user *domain.User) error {
	doc := userDocument{
		Email:                     user.Email,
		Password:                  user.Password,
		FirstName:                 user.FirstName,
		LastName:                  user.LastName,
		PhoneNumber:               user.PhoneNumber,
		Address:                   user.Address,
		IsDisabled:                user.IsDisabled,
		Role:                      string(user.Role),
		SelectedSecurityQuestions: user.SelectedSecurityQuestions,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert user: unexpected id type %T", res.InsertedID)
	}
	user.ID = oid.Hex()
	return nil
}

func (r *mongoUserRepository) List(ctx context.Context) ([]domain.UserSummary, error) {
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var docs []summaryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	out := make([]domain.UserSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (r *mongoUserRepository) FindSummaryByID(ctx context.Context, id string) (*domain.UserSummary, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc summaryDocument
	err = r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}, options.FindOne().SetProjection(summaryProjection)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	summary := doc.toDomain()
	return &summary, nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc userDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *mongoUserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	filter := bson.D{{Key: "_id", Value: oid}}

	if len(patch) == 0 {
		n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("count user: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	}

	res, err := r.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.M(patch)}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d summaryDocument) toDomain() domain.UserSummary {
	return domain.UserSummary{
		ID:        d.ID.Hex(),
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Role:      domain.Role(d.Role),
	}
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:                        d.ID.Hex(),
		Email:                     d.Email,
		Password:                  d.Password,
		FirstName:                 d.FirstName,
		LastName:                  d.LastName,
		PhoneNumber:               d.PhoneNumber,
		Address:                   d.Address,
		IsDisabled:                d.IsDisabled,
		Role:                      domain.Role(d.Role),
		SelectedSecurityQuestions: d.SelectedSecurityQuestions,
	}
}
