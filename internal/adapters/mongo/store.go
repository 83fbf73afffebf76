// Package mongo stores member documents, memos embedded, in a MongoDB
// collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/memoboard/internal/config"
	"github.com/dkeye/memoboard/internal/core"
	"github.com/dkeye/memoboard/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const nameIndex = "name_1"

type memberDocument struct {
	ID    primitive.ObjectID `bson:"_id,omitempty"`
	Name  string             `bson:"name"`
	Memos []memoDocument     `bson:"memos"`
}

type memoDocument struct {
	ID        string    `bson:"id"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ core.MemberStore = (*Store)(nil)

// Open connects, pings and makes sure the name index exists.
func Open(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info().Str("module", "adapters.mongo").Str("db", cfg.Database).Str("collection", cfg.Collection).Msg("mongo store ready")
	return s, nil
}

// New wraps an existing collection. Close is then a no-op.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the non-unique index backing FindByName.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName(nameIndex),
	})
	if err != nil {
		return fmt.Errorf("create name index: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id domain.MemberID) (*domain.Member, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		// not an id this store could have generated
		return nil, domain.ErrMemberNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *Store) FindByName(ctx context.Context, name string) (*domain.Member, error) {
	return s.findOne(ctx, bson.M{"name": name}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.Member, error) {
	var doc memberDocument
	err := s.coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	return fromDocument(doc), nil
}

func (s *Store) Create(ctx context.Context, m *domain.Member) (*domain.Member, error) {
	doc, err := toDocument(m)
	if err != nil {
		return nil, err
	}
	doc.ID = primitive.NilObjectID

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("insert member: unexpected id type %T", res.InsertedID)
	}
	doc.ID = oid
	return fromDocument(doc), nil
}

// Save replaces the whole document; nothing guards against a concurrent
// writer.
func (s *Store) Save(ctx context.Context, m *domain.Member) error {
	doc, err := toDocument(m)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		return fmt.Errorf("save member: %w", domain.ErrMemberNotFound)
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace member %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func toDocument(m *domain.Member) (memberDocument, error) {
	doc := memberDocument{Name: m.Name, Memos: make([]memoDocument, 0, len(m.Memos))}
	if m.ID != "" {
		oid, err := primitive.ObjectIDFromHex(string(m.ID))
		if err != nil {
			return memberDocument{}, fmt.Errorf("member id %q: %w", m.ID, err)
		}
		doc.ID = oid
	}
	for _, memo := range m.Memos {
		doc.Memos = append(doc.Memos, memoDocument{
			ID:        string(memo.ID),
			Content:   memo.Content,
			Timestamp: memo.Timestamp.UTC(),
		})
	}
	return doc, nil
}

func fromDocument(doc memberDocument) *domain.Member {
	m := &domain.Member{Name: doc.Name, Memos: make([]domain.Memo, 0, len(doc.Memos))}
	if !doc.ID.IsZero() {
		m.ID = domain.MemberID(doc.ID.Hex())
	}
	for _, memo := range doc.Memos {
		m.Memos = append(m.Memos, domain.Memo{
			ID:        domain.MemoID(memo.ID),
			Content:   memo.Content,
			Timestamp: memo.Timestamp.UTC(),
		})
	}
	return m
}
