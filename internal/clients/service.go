package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Client, error)
	Create(ctx context.Context, c Client) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
}

// Service coordinates client operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a client.
func (s *Service) Create(ctx context.Context, req CreateClientRequest) (Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Client{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	client := Client{
		Name:     name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		TaxID:    req.TaxID,
		IsActive: true,
	}
	id, err := s.repo.Create(ctx, client)
	if err != nil {
		return Client{}, fmt.Errorf("clients: create: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update patches a client.
func (s *Service) Update(ctx context.Context, id int64, req UpdateClientRequest) (Client, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Client{}, err
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.TaxID != nil {
		updates["tax_id"] = *req.TaxID
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return Client{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get loads one client.
func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered page of clients.
func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, shared.Pagination, error) {
	out, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(req.Page, req.PerPage, total), nil
}
