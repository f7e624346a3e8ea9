package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Store defines the persistence operations the registry needs.
type Store interface {
	GetByName(ctx context.Context, name string) (Instance, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// Service is the read-mostly instance registry.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an instance registry service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "instance")),
	}
}

// GetByName returns the instance registered under the given channel name.
func (s *Service) GetByName(ctx context.Context, name string) (Instance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Instance{}, fmt.Errorf("instance name is required")
	}
	inst, err := s.store.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Instance{}, ErrNotFound
		}
		return Instance{}, fmt.Errorf("get instance %q: %w", name, err)
	}
	return inst, nil
}

// SetStatus records a connection state change reported by the provider.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != StatusConnected && status != StatusDisconnected {
		return fmt.Errorf("unknown instance status: %q", status)
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update instance status: %w", err)
	}
	s.logger.Info("instance status updated",
		slog.String("instance_id", id),
		slog.String("status", status),
	)
	return nil
}
