package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/octobridge/octobridge/pkg/log"
	"github.com/octobridge/octobridge/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Rates and device actions are stored as JSON blobs in
// per-account sub-collections, keyed by RFC3339 timestamps so range queries
// can run on document IDs.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(accountNumber, name string) (*firestore.CollectionRef, error) {
	if accountNumber == "" {
		return nil, fmt.Errorf("accountNumber cannot be empty")
	}
	return f.client.Collection("accounts").Doc(accountNumber).Collection(name), nil
}

// UpsertRate adds or updates a rate observation in the "rate_history"
// sub-collection of the account. The document ID is the RFC3339 timestamp
// for lexicographic ordering and efficient range queries.
func (f *FirestoreProvider) UpsertRate(ctx context.Context, accountNumber string, rate types.RatePoint) error {
	if rate.TS.IsZero() {
		return fmt.Errorf("rate point missing ts")
	}
	jsonBytes, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("failed to marshal rate point: %w", err)
	}

	coll, err := f.getCollection(accountNumber, "rate_history")
	if err != nil {
		return err
	}
	docID := rate.TS.UTC().Format(time.RFC3339) + "_" + string(rate.Fuel)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": rate.TS,
		"fuel":      string(rate.Fuel),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert rate point: %w", err)
	}
	return nil
}

// GetRateHistory retrieves rate observations within the specified time range
// for an account. Uses document ID range queries for efficient filtering.
func (f *FirestoreProvider) GetRateHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.RatePoint, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	coll, err := f.getCollection(accountNumber, "rate_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var rates []types.RatePoint
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating rate points: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "rate doc missing json", slog.String("docID", doc.Ref.ID), slog.String("accountNumber", accountNumber), slog.Any("err", err))
			return nil, fmt.Errorf("rate document %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "rate doc json not string", slog.String("docID", doc.Ref.ID), slog.String("accountNumber", accountNumber))
			return nil, fmt.Errorf("rate document %s 'json' field is not string", doc.Ref.ID)
		}

		var r types.RatePoint
		if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal rate point", slog.String("docID", doc.Ref.ID), slog.String("accountNumber", accountNumber), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal rate point (id=%s): %w", doc.Ref.ID, err)
		}
		rates = append(rates, r)
	}
	return rates, nil
}

// GetLatestRateTime retrieves the timestamp of the last stored rate
// observation for an account.
func (f *FirestoreProvider) GetLatestRateTime(ctx context.Context, accountNumber string) (time.Time, error) {
	coll, err := f.getCollection(accountNumber, "rate_history")
	if err != nil {
		return time.Time{}, err
	}

	// firestore automatically creates indexes for top-level fields
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get latest rate doc: %w", err)
	}

	val, err := doc.DataAt("timestamp")
	if err != nil {
		return time.Time{}, fmt.Errorf("latest rate doc %s missing timestamp: %w", doc.Ref.ID, err)
	}
	ts, ok := val.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("latest rate doc %s timestamp is not a time", doc.Ref.ID)
	}
	return ts, nil
}

// InsertDeviceAction adds a control action record to the "action_history"
// sub-collection of the account as a JSON blob.
// The document ID is the RFC3339 timestamp for efficient range queries.
func (f *FirestoreProvider) InsertDeviceAction(ctx context.Context, accountNumber string, action types.DeviceAction) error {
	jsonBytes, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal device action: %w", err)
	}

	coll, err := f.getCollection(accountNumber, "action_history")
	if err != nil {
		return err
	}
	docID := action.Timestamp.UTC().Format(time.RFC3339Nano)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": action.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert device action: %w", err)
	}
	return nil
}

// GetDeviceActionHistory retrieves control actions within the specified time
// range. Uses document ID range queries for efficient filtering without
// reading all documents.
func (f *FirestoreProvider) GetDeviceActionHistory(ctx context.Context, accountNumber string, start, end time.Time) ([]types.DeviceAction, error) {
	startDocID := start.UTC().Format(time.RFC3339Nano)
	endDocID := end.UTC().Format(time.RFC3339Nano)

	coll, err := f.getCollection(accountNumber, "action_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var actions []types.DeviceAction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating device actions: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "action doc missing json", slog.String("docID", doc.Ref.ID), slog.String("accountNumber", accountNumber), slog.Any("err", err))
			return nil, fmt.Errorf("action document %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "action doc json not string", slog.String("docID", doc.Ref.ID), slog.String("accountNumber", accountNumber))
			return nil, fmt.Errorf("action document %s 'json' field is not string", doc.Ref.ID)
		}

		var a types.DeviceAction
		if err := json.Unmarshal([]byte(jsonStr), &a); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal device action", slog.String("docID", doc.Ref.ID), slog.String("accountNumber", accountNumber), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal device action (id=%s): %w", doc.Ref.ID, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}
