package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// AuditDocument mirrors one balance-changed event in the audit collection.
type AuditDocument struct {
	ID          string    `bson:"_id,omitempty"`
	AccountID   string    `bson:"account_id"`
	Seq         int64     `bson:"seq"`
	OldBalance  int64     `bson:"old_balance"`
	NewBalance  int64     `bson:"new_balance"`
	Reason      string    `bson:"reason"`
	Version     int       `bson:"version"`
	ProcessedAt time.Time `bson:"processed_at"`
}

// AuditRepository stores the mongo mirror of the event stream. The postgres
// ledger stays authoritative; this collection only serves audit queries.
type AuditRepository struct {
	collection *mongo.Collection
}

func NewAuditRepository(client *mongo.Client, dbName string) *AuditRepository {
	return &AuditRepository{
		collection: client.Database(dbName).Collection("balance_events"),
	}
}

func (r *AuditRepository) Save(ctx context.Context, doc AuditDocument) error {
	doc.ProcessedAt = time.Now()
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit document: %w", err)
	}
	return nil
}
