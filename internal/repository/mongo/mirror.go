package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/internal/repository"
)

const (
	collectionName = "provisioned_accounts"
	accountKey     = "account_sys_id"
)

// Mirror copies provisioning results into MongoDB so the dashboard can list them
// without querying ServiceNow.
type Mirror struct {
	client     *mongodrv.Client
	collection *mongodrv.Collection
}

var _ repository.ProvisionMirror = (*Mirror)(nil)

// Connect dials MongoDB, verifies the primary, and ensures the account index exists.
func Connect(ctx context.Context, uri, database string) (*Mirror, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongodrv.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	coll := client.Database(database).Collection(collectionName)
	_, err = coll.Indexes().CreateOne(connectCtx, mongodrv.IndexModel{
		Keys:    bson.D{{Key: accountKey, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo index: %w", err)
	}
	return &Mirror{client: client, collection: coll}, nil
}

// RecordProvisioned upserts the result keyed by account sys_id.
func (m *Mirror) RecordProvisioned(ctx context.Context, result domain.ProvisionResult) error {
	filter, update := upsertDocs(result)
	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mirror provisioned account: %w", err)
	}
	return nil
}

func upsertDocs(result domain.ProvisionResult) (filter, update bson.D) {
	filter = bson.D{{Key: accountKey, Value: result.AccountID}}
	update = bson.D{{Key: "$set", Value: result}}
	return filter, update
}

// Close disconnects from MongoDB.
func (m *Mirror) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
