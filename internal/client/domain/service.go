package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
)

type CreateClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ListClientRequest struct {
	Name      string
	Email     string
	PageToken string
	PageSize  int
}

type ListClientFilter struct {
	Name  string
	Email string
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type Service interface {
	Create(context.Context, CreateClientRequest) (Client, error)
	GetByID(ctx context.Context, id snowflake.ID) (Client, error)
	// FindByIDs returns the clients that exist, keyed by id.
	FindByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Client, error)
	List(context.Context, ListClientRequest) (ListClientResponse, error)
}

var (
	ErrInvalidName  = &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: "invalid_name", Field: "name"}
	ErrInvalidEmail = &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: "invalid_email", Field: "email"}
	ErrNotFound     = docdomain.NotFound("client_not_found")
)

// IsNotFound reports whether err is a missing client.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
