package device

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultFirestoreCollection holds one document per device.
const DefaultFirestoreCollection = "devices"

// FirestoreRepository stores each device as a Firestore document and relies
// on merge writes for partial updates.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRepository creates a Firestore-backed repository.
func NewFirestoreRepository(client *firestore.Client, collection string) *FirestoreRepository {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	return &FirestoreRepository{client: client, collection: collection}
}

// Get retrieves a device record.
func (r *FirestoreRepository) Get(ctx context.Context, deviceID string) (*Record, error) {
	snap, err := r.client.Collection(r.collection).Doc(deviceID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	var record Record
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode device document: %w", err)
	}
	return &record, nil
}

// Merge writes only the fields named by the patch.
func (r *FirestoreRepository) Merge(ctx context.Context, deviceID string, patch Patch) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	_, err := r.client.Collection(r.collection).Doc(deviceID).Set(ctx, fields, firestore.MergeAll)
	return err
}

// Ensure FirestoreRepository implements Repository interface.
var _ Repository = (*FirestoreRepository)(nil)
