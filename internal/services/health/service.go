package health

import (
	"context"
	"database/sql"

	"esign-backend/internal/shared/storage/db"
)

// Service encapsulates health-related checks.
type Service struct {
	DB *sql.DB
}

// NewService constructs a new health service. database may be nil when the
// app runs on in-memory repositories.
func NewService(database *sql.DB) *Service {
	return &Service{DB: database}
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// Check reports whether the service can reach its dependencies.
func (s *Service) Check(ctx context.Context) Status {
	if s.DB == nil {
		return Status{OK: true, Database: "memory"}
	}
	if err := db.Ping(ctx, s.DB); err != nil {
		return Status{OK: false, Database: "unreachable"}
	}
	return Status{OK: true, Database: "ok"}
}
