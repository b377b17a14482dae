// Package mongostore keeps classes, questions and users as MongoDB documents.
package mongostore

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vidyavichar/models"
	"vidyavichar/store"
)

type Store struct {
	classes   *mongo.Collection
	questions *mongo.Collection
	users     *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		classes:   db.Collection("classes"),
		questions: db.Collection("questions"),
		users:     db.Collection("users"),
	}
}

var _ store.Store = (*Store)(nil)

// EnsureIndexes creates the indexes the queries below rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.classes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name_ci", Value: 1}, {Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return errors.Wrap(err, "creating class indexes")
	}
	if _, err := s.questions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "classId", Value: 1}, {Key: "deleted", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "classId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return errors.Wrap(err, "creating question indexes")
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Wrap(err, "creating user indexes")
	}
	return nil
}

func wrap(err error, msg string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

func (s *Store) CreateClass(ctx context.Context, c *models.Class) error {
	if _, err := s.classes.InsertOne(ctx, c); err != nil {
		return errors.Wrap(err, "creating class")
	}
	return nil
}

func (s *Store) GetClass(ctx context.Context, id string) (*models.Class, error) {
	var c models.Class
	if err := s.classes.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, wrap(err, "getting class")
	}
	return &c, nil
}

func (s *Store) FindActiveByName(ctx context.Context, name, excludeID string) (*models.Class, error) {
	filter := bson.M{"name_ci": models.ClassNameKey(name), "isActive": true}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	var c models.Class
	if err := s.classes.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, wrap(err, "finding class by name")
	}
	return &c, nil
}

func (s *Store) ListActiveClasses(ctx context.Context, f store.ClassFilter) ([]models.Class, error) {
	filter := bson.M{"isActive": true}
	if f.CreatedBy != "" {
		filter["createdBy"] = f.CreatedBy
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"subject": re},
			bson.M{"description": re},
		}
	}
	cur, err := s.classes.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, errors.Wrap(err, "listing classes")
	}
	defer cur.Close(ctx)

	classes := []models.Class{}
	if err := cur.All(ctx, &classes); err != nil {
		return nil, errors.Wrap(err, "decoding classes")
	}
	return classes, nil
}

func (s *Store) UpdateClass(ctx context.Context, id string, upd store.ClassUpdate) (*models.Class, error) {
	set := bson.M{"updatedAt": upd.UpdatedAt}
	if upd.Name != nil {
		set["name"] = *upd.Name
		set["name_ci"] = models.ClassNameKey(*upd.Name)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Subject != nil {
		set["subject"] = *upd.Subject
	}
	if upd.IsActive != nil {
		set["isActive"] = *upd.IsActive
	}

	var c models.Class
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.classes.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&c); err != nil {
		return nil, wrap(err, "updating class")
	}
	return &c, nil
}

func (s *Store) IncrementCounters(ctx context.Context, id string, d store.CounterDelta) error {
	if d.IsZero() {
		return nil
	}
	res, err := s.classes.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{
		"totalQuestions":   d.Total,
		"pendingQuestions": d.Pending,
	}})
	if err != nil {
		return errors.Wrap(err, "incrementing class counters")
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetCounters(ctx context.Context, id string, c store.Counters) error {
	set := bson.M{"totalQuestions": c.Total, "activeQuestions": c.Active}
	if c.Pending != nil {
		set["pendingQuestions"] = *c.Pending
	}
	res, err := s.classes.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "setting class counters")
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	if _, err := s.questions.InsertOne(ctx, q); err != nil {
		return errors.Wrap(err, "creating question")
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	var q models.Question
	if err := s.questions.FindOne(ctx, bson.M{"_id": id}).Decode(&q); err != nil {
		return nil, wrap(err, "getting question")
	}
	return &q, nil
}

func (s *Store) FindByText(ctx context.Context, classID, text string, includeDeleted bool) (*models.Question, error) {
	filter := bson.M{"classId": classID, "text": text}
	if !includeDeleted {
		filter["deleted"] = bson.M{"$ne": true}
	}
	var q models.Question
	if err := s.questions.FindOne(ctx, filter).Decode(&q); err != nil {
		return nil, wrap(err, "finding question by text")
	}
	return &q, nil
}

func (s *Store) ListQuestions(ctx context.Context, f store.QuestionFilter) ([]models.Question, error) {
	filter := bson.M{"classId": f.ClassID}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Deleted != nil {
		if *f.Deleted {
			filter["deleted"] = true
		} else {
			filter["deleted"] = bson.M{"$ne": true}
		}
	}
	cur, err := s.questions.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, errors.Wrap(err, "listing questions")
	}
	defer cur.Close(ctx)

	questions := []models.Question{}
	if err := cur.All(ctx, &questions); err != nil {
		return nil, errors.Wrap(err, "decoding questions")
	}
	return questions, nil
}

func countIf(cond interface{}) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
}

func live(cond bson.M) bson.M {
	return bson.M{"$and": bson.A{cond, bson.M{"$ne": bson.A{"$deleted", true}}}}
}

type statsDoc struct {
	Total        int64 `bson:"total"`
	Pending      int64 `bson:"pending"`
	Answered     int64 `bson:"answered"`
	Important    int64 `bson:"important"`
	Deleted      int64 `bson:"deleted"`
	PendingTotal int64 `bson:"pendingTotal"`
}

func (s *Store) CountQuestions(ctx context.Context, classID string) (models.QuestionStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"classId": classID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"total":     bson.M{"$sum": 1},
			"pending":   countIf(live(bson.M{"$eq": bson.A{"$status", models.StatusPending}})),
			"answered":  countIf(live(bson.M{"$eq": bson.A{"$status", models.StatusAnswered}})),
			"important": countIf(live(bson.M{"$eq": bson.A{"$status", models.StatusImportant}})),
			"deleted":   countIf(bson.M{"$eq": bson.A{"$deleted", true}}),
			"pendingTotal": countIf(live(bson.M{"$in": bson.A{
				"$status", bson.A{models.StatusPending, models.StatusImportant},
			}})),
		}}},
	}
	cur, err := s.questions.Aggregate(ctx, pipeline)
	if err != nil {
		return models.QuestionStats{}, errors.Wrap(err, "aggregating question stats")
	}
	defer cur.Close(ctx)

	var docs []statsDoc
	if err := cur.All(ctx, &docs); err != nil {
		return models.QuestionStats{}, errors.Wrap(err, "decoding question stats")
	}
	if len(docs) == 0 {
		return models.QuestionStats{}, nil
	}
	d := docs[0]
	return models.QuestionStats{
		Total:        d.Total,
		Pending:      d.Pending,
		Answered:     d.Answered,
		Important:    d.Important,
		Deleted:      d.Deleted,
		PendingTotal: d.PendingTotal,
	}, nil
}

// TransitionStatus relies on FindOneAndUpdate returning the pre-image so the
// caller sees exactly the status it replaced.
func (s *Store) TransitionStatus(ctx context.Context, id string, status models.QuestionStatus) (*models.Question, *models.Question, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before models.Question
	err := s.questions.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": now}},
		opts,
	).Decode(&before)
	if err != nil {
		return nil, nil, wrap(err, "updating question status")
	}
	after := before
	after.Status = status
	after.UpdatedAt = now
	return &before, &after, nil
}

func (s *Store) MarkDeleted(ctx context.Context, id string) (*models.Question, *models.Question, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before models.Question
	err := s.questions.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"deleted": true, "updatedAt": now}},
		opts,
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, gerr := s.GetQuestion(ctx, id)
		if gerr != nil {
			return nil, nil, gerr
		}
		return current, current, store.ErrAlreadyDeleted
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "deleting question")
	}
	after := before
	after.Deleted = true
	after.UpdatedAt = now
	return &before, &after, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrEmailExists
		}
		return errors.Wrap(err, "creating user")
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, wrap(err, "getting user")
	}
	return &u, nil
}

// GetUserByEmail expects email to be normalized to lower case, which the
// auth service does before every write and lookup.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, wrap(err, "getting user by email")
	}
	return &u, nil
}
