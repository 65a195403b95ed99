package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tomlord1122/todo-api/internal/domain"
)

// countersCollection holds one sequence document per todo collection. Ids
// come from $inc on that document, so they are never handed out twice.
const countersCollection = "counters"

type mongoTodoRepository struct {
	todos    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoTodoRepository returns a repository storing todos in the named
// collection of db. It ensures the title index exists.
func NewMongoTodoRepository(ctx context.Context, db *mongo.Database, collection string) (TodoRepository, error) {
	todos := db.Collection(collection)
	_, err := todos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create title index: %w", err)
	}
	return &mongoTodoRepository{
		todos:    todos,
		counters: db.Collection(countersCollection),
	}, nil
}

func (r *mongoTodoRepository) nextID(ctx context.Context) (uint64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.todos.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next todo id: %w", err)
	}
	return uint64(counter.Seq), nil
}

func (r *mongoTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	todo.ID = id
	if _, err := r.todos.InsertOne(ctx, todo); err != nil {
		todo.ID = 0
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *mongoTodoRepository) FindByID(ctx context.Context, id uint64) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.todos.FindOne(ctx, bson.M{"_id": id}).Decode(&todo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound(id)
		}
		return nil, fmt.Errorf("find todo %d: %w", id, err)
	}
	return &todo, nil
}

func (r *mongoTodoRepository) GetAll(ctx context.Context, order domain.SortOrder) ([]domain.Todo, error) {
	cursor, err := r.todos.Find(ctx, bson.D{}, options.Find().SetSort(mongoSort(order)))
	if err != nil {
		return nil, fmt.Errorf("find todos: %w", err)
	}

	todos := []domain.Todo{}
	if err := cursor.All(ctx, &todos); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}
	return todos, nil
}

func (r *mongoTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	result, err := r.todos.UpdateOne(ctx,
		bson.M{"_id": todo.ID},
		bson.M{"$set": bson.M{
			"title":       todo.Title,
			"description": todo.Description,
			"completed":   todo.Completed,
			"updated_at":  todo.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, err)
	}
	if result.MatchedCount == 0 {
		return domain.NotFound(todo.ID)
	}
	return nil
}

func (r *mongoTodoRepository) Delete(ctx context.Context, id uint64) error {
	result, err := r.todos.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return domain.NotFound(id)
	}
	return nil
}

func mongoSort(order domain.SortOrder) bson.D {
	switch order {
	case domain.SortByDate:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	case domain.SortByCompleted:
		return bson.D{{Key: "completed", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "_id", Value: 1}}
	}
}
