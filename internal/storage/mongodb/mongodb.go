package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/ender-tasks-be/internal/models"
	"github.com/isdelr/ender-tasks-be/internal/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Storage is the MongoDB credential store.
type Storage struct {
	client *mongo.Client
	users  *mongo.Collection
	todos  *mongo.Collection
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	FullName     string    `bson:"full_name"`
	PasswordHash string    `bson:"password_hash"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// creationOrder sorts todos oldest first.
var creationOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

type todoDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// New connects to MongoDB, verifies the connection and sets up indexes.
// timeout bounds every operation issued through the client.
func New(ctx context.Context, uri, database string, timeout time.Duration) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client: client,
		users:  db.Collection("users"),
		todos:  db.Collection("todos"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users.email index: %w", err)
	}

	_, err = s.todos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("todos.user_id index: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Storage) CreateUser(ctx context.Context, user models.User) error {
	const op = "storage.mongodb.CreateUser"

	_, err := s.users.InsertOne(ctx, toUserDoc(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.mongodb.UserByID"

	user, err := s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.mongodb.UserByEmail"

	user, err := s.findUser(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) findUser(ctx context.Context, filter bson.D) (models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, err
	}
	return doc.toModel(), nil
}

// UpdateProfile sets a user's name and email and returns the updated record.
func (s *Storage) UpdateProfile(ctx context.Context, id, fullName, email string) (models.User, error) {
	const op = "storage.mongodb.UpdateProfile"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "full_name", Value: fullName},
		{Key: "email", Value: email},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		case mongo.IsDuplicateKeyError(err):
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.toModel(), nil
}

func (s *Storage) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "storage.mongodb.UpdatePasswordHash"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_hash", Value: hash},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	if err := s.updateUser(ctx, id, update); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetRefreshToken stores the user's current refresh token. An empty token unsets it.
func (s *Storage) SetRefreshToken(ctx context.Context, id, token string) error {
	const op = "storage.mongodb.SetRefreshToken"

	now := time.Now().UTC()
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "refresh_token", Value: token},
		{Key: "updated_at", Value: now},
	}}}
	if token == "" {
		update = bson.D{
			{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		}
	}
	if err := s.updateUser(ctx, id, update); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) updateUser(ctx context.Context, id string, update bson.D) error {
	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

func (s *Storage) CreateTodo(ctx context.Context, todo models.Todo) error {
	const op = "storage.mongodb.CreateTodo"

	if _, err := s.todos.InsertOne(ctx, toTodoDoc(todo)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TodosByUser returns every todo owned by userID, oldest first. BSON dates
// keep only milliseconds, so ties fall back to the time-ordered _id.
func (s *Storage) TodosByUser(ctx context.Context, userID string) ([]models.Todo, error) {
	const op = "storage.mongodb.TodosByUser"

	opts := options.Find().SetSort(creationOrder)
	cur, err := s.todos.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var docs []todoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	todos := make([]models.Todo, 0, len(docs))
	for _, doc := range docs {
		todos = append(todos, doc.toModel())
	}
	return todos, nil
}

// TodoByID returns the todo only when it belongs to userID.
func (s *Storage) TodoByID(ctx context.Context, userID, id string) (models.Todo, error) {
	const op = "storage.mongodb.TodoByID"

	var doc todoDoc
	err := s.todos.FindOne(ctx, ownedBy(userID, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Todo{}, fmt.Errorf("%s: %w", op, storage.ErrTodoNotFound)
		}
		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.toModel(), nil
}

func (s *Storage) UpdateTodoStatus(ctx context.Context, userID, id, status string) (models.Todo, error) {
	const op = "storage.mongodb.UpdateTodoStatus"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc todoDoc
	err := s.todos.FindOneAndUpdate(ctx, ownedBy(userID, id), update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Todo{}, fmt.Errorf("%s: %w", op, storage.ErrTodoNotFound)
		}
		return models.Todo{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.toModel(), nil
}

func (s *Storage) DeleteTodo(ctx context.Context, userID, id string) error {
	const op = "storage.mongodb.DeleteTodo"

	res, err := s.todos.DeleteOne(ctx, ownedBy(userID, id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTodoNotFound)
	}
	return nil
}

// ownedBy is the filter every todo lookup goes through.
func ownedBy(userID, id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}}
}

func toUserDoc(u models.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: u.PasswordHash,
		RefreshToken: u.RefreshToken,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toModel() models.User {
	return models.User{
		ID:           d.ID,
		Email:        d.Email,
		FullName:     d.FullName,
		PasswordHash: d.PasswordHash,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func toTodoDoc(t models.Todo) todoDoc {
	return todoDoc{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d todoDoc) toModel() models.Todo {
	return models.Todo{
		ID:          d.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}
