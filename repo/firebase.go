package repo

import (
	"context"
	"fmt"
	"time"

	"HealthIntake/model"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

const firebaseRoot = "questionnaires"

// FirebaseStore keeps submissions in a Firebase Realtime Database.
// Contact lookups and retention use orderByChild queries, so the database
// rules need ".indexOn": ["lookup/telegram", "lookup/instagram", "lookup/phone", "createdUnix"]
// under /questionnaires.
type FirebaseStore struct {
	app    *firebase.App
	client *db.Client
}

// firebaseRecord is the stored shape: the submission plus the normalized
// contact and creation time used by queries
type firebaseRecord struct {
	model.Submission
	Lookup      model.ContactKey `json:"lookup"`
	CreatedUnix int64            `json:"createdUnix"`
}

// NewFirebaseStore connects to the database at databaseURL. An empty
// serviceAccountKeyPath falls back to application default credentials.
func NewFirebaseStore(ctx context.Context, serviceAccountKeyPath string, databaseURL string) (*FirebaseStore, error) {
	var opts []option.ClientOption
	if serviceAccountKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountKeyPath))
	}

	config := &firebase.Config{
		DatabaseURL: databaseURL,
	}
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	return &FirebaseStore{
		app:    app,
		client: client,
	}, nil
}

func (fs *FirebaseStore) ref(id string) *db.Ref {
	return fs.client.NewRef(firebaseRoot).Child(id)
}

// Create writes a new submission under its id
func (fs *FirebaseStore) Create(ctx context.Context, s model.Submission) error {
	rec := firebaseRecord{
		Submission:  s,
		Lookup:      s.Contact.Key(),
		CreatedUnix: s.CreatedAt.UnixNano(),
	}
	if err := fs.ref(s.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("error creating questionnaire: %w", err)
	}
	return nil
}

// Get reads a submission by id
func (fs *FirebaseStore) Get(ctx context.Context, id string) (*model.Submission, error) {
	var rec firebaseRecord
	if err := fs.ref(id).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("error reading questionnaire: %w", err)
	}
	if rec.ID == "" {
		return nil, model.ErrSubmissionNotFound
	}
	return &rec.Submission, nil
}

// GetMany reads each id in turn, skipping unknown ones
func (fs *FirebaseStore) GetMany(ctx context.Context, ids []string) ([]model.Submission, error) {
	var out []model.Submission
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] || id == "" {
			continue
		}
		seen[id] = true
		s, err := fs.Get(ctx, id)
		if err == model.ErrSubmissionNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// SetMessageIDs replaces the chat message ids of a submission
func (fs *FirebaseStore) SetMessageIDs(ctx context.Context, id string, messageIDs []int) error {
	if _, err := fs.Get(ctx, id); err != nil {
		return err
	}
	err := fs.ref(id).Update(ctx, map[string]interface{}{
		"telegramMessageIds": messageIDs,
		"updatedAt":          nowFunc().UTC(),
	})
	if err != nil {
		return fmt.Errorf("error updating message ids: %w", err)
	}
	return nil
}

// Delete removes a submission by id
func (fs *FirebaseStore) Delete(ctx context.Context, id string) error {
	if _, err := fs.Get(ctx, id); err != nil {
		return err
	}
	if err := fs.ref(id).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting questionnaire: %w", err)
	}
	return nil
}

// FindByContact runs one equality query per non-empty contact field and merges the results
func (fs *FirebaseStore) FindByContact(ctx context.Context, q model.ContactKey) ([]model.Submission, error) {
	fields := []struct {
		child string
		value string
	}{
		{"lookup/telegram", q.Telegram},
		{"lookup/instagram", q.Instagram},
		{"lookup/phone", q.Phone},
	}

	found := make(map[string]model.Submission)
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		var recs map[string]firebaseRecord
		err := fs.client.NewRef(firebaseRoot).OrderByChild(f.child).EqualTo(f.value).Get(ctx, &recs)
		if err != nil {
			return nil, fmt.Errorf("error searching questionnaires by %s: %w", f.child, err)
		}
		for _, rec := range recs {
			found[rec.ID] = rec.Submission
		}
	}

	out := make([]model.Submission, 0, len(found))
	for _, s := range found {
		out = append(out, s)
	}
	return out, nil
}

// DeleteBefore removes every submission created before t
func (fs *FirebaseStore) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	var recs map[string]firebaseRecord
	err := fs.client.NewRef(firebaseRoot).OrderByChild("createdUnix").EndAt(t.UnixNano() - 1).Get(ctx, &recs)
	if err != nil {
		return 0, fmt.Errorf("error listing expired questionnaires: %w", err)
	}
	n := 0
	for key := range recs {
		if err := fs.ref(key).Delete(ctx); err != nil {
			return n, fmt.Errorf("error purging questionnaire %s: %w", key, err)
		}
		n++
	}
	return n, nil
}

// Count returns the number of stored submissions using a shallow read
func (fs *FirebaseStore) Count(ctx context.Context) (int, error) {
	var keys map[string]interface{}
	if err := fs.client.NewRef(firebaseRoot).GetShallow(ctx, &keys); err != nil {
		return 0, fmt.Errorf("error counting questionnaires: %w", err)
	}
	return len(keys), nil
}

// Close releases nothing; the Firebase SDK holds no per-store resources
func (fs *FirebaseStore) Close() error {
	return nil
}
