package repo

import (
	"context"
	"time"

	"HealthIntake/model"
)

// SubmissionStore persists questionnaires. Implementations are safe for concurrent use.
type SubmissionStore interface {
	Create(ctx context.Context, s model.Submission) error
	Get(ctx context.Context, id string) (*model.Submission, error)
	GetMany(ctx context.Context, ids []string) ([]model.Submission, error)
	SetMessageIDs(ctx context.Context, id string, messageIDs []int) error
	Delete(ctx context.Context, id string) error
	FindByContact(ctx context.Context, query model.ContactKey) ([]model.Submission, error)
	DeleteBefore(ctx context.Context, t time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverFirebase = "firebase"
)

var nowFunc = time.Now
