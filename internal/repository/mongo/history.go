package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"musicstream/internal/domain"
)

type downloadDoc struct {
	Filename   string `bson:"filename"`
	SourceURL  string `bson:"sourceUrl"`
	Status     string `bson:"status"`
	Size       int64  `bson:"size"`
	Error      string `bson:"error,omitempty"`
	StartedAt  int64  `bson:"startedAt"`
	FinishedAt int64  `bson:"finishedAt"`
}

// HistoryRepository persists finished download records so the ingestion
// history survives restarts.
type HistoryRepository struct {
	collection *mongo.Collection
}

func NewHistoryRepository(client *mongo.Client, dbName string) *HistoryRepository {
	return &HistoryRepository{collection: client.Database(dbName).Collection("download_history")}
}

// Connect dials a Mongo deployment with the given client options applied on
// top of the URI.
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "finishedAt", Value: -1}},
	})
	return err
}

func (r *HistoryRepository) Add(ctx context.Context, rec domain.DownloadRecord) error {
	_, err := r.collection.InsertOne(ctx, toDownloadDoc(rec))
	return err
}

func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]domain.DownloadRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "finishedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []downloadDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	records := make([]domain.DownloadRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDownloadDoc(doc))
	}
	return records, nil
}

func toDownloadDoc(rec domain.DownloadRecord) downloadDoc {
	return downloadDoc{
		Filename:   rec.Filename,
		SourceURL:  rec.SourceURL,
		Status:     string(rec.Status),
		Size:       rec.Size,
		Error:      rec.Error,
		StartedAt:  rec.StartedAt.Unix(),
		FinishedAt: rec.FinishedAt.Unix(),
	}
}

func fromDownloadDoc(doc downloadDoc) domain.DownloadRecord {
	return domain.DownloadRecord{
		Filename:   doc.Filename,
		SourceURL:  doc.SourceURL,
		Status:     domain.DownloadStatus(doc.Status),
		Size:       doc.Size,
		Error:      doc.Error,
		StartedAt:  time.Unix(doc.StartedAt, 0).UTC(),
		FinishedAt: time.Unix(doc.FinishedAt, 0).UTC(),
	}
}
