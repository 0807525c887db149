package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/internal/client/domain"
	"github.com/smallbiznis/quotebook/internal/clock"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (domain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Client{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Client{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	client := domain.Client{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		return domain.Client{}, docdomain.Persistence("client.create", err)
	}

	s.log.Info("client created", zap.String("client_id", client.ID.String()))
	return client, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Client, error) {
	if id == 0 {
		return domain.Client{}, docdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Client{}, docdomain.Persistence("client.get", err)
	}
	if item == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) FindByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.Client, error) {
	unique := make([]snowflake.ID, 0, len(ids))
	seen := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	items, err := s.repo.FindByIDs(ctx, s.db, unique)
	if err != nil {
		return nil, docdomain.Persistence("client.find", err)
	}

	out := make(map[snowflake.ID]domain.Client, len(items))
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClientRequest) (domain.ListClientResponse, error) {
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return domain.ListClientResponse{}, &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: err.Error(), Field: "page_token"}
	}

	filter := domain.ListClientFilter{
		Name:  strings.ToLower(strings.TrimSpace(req.Name)),
		Email: strings.TrimSpace(req.Email),
	}

	limit := page.Limit()
	items, err := s.repo.List(ctx, s.db, filter, cursor, limit)
	if err != nil {
		return domain.ListClientResponse{}, docdomain.Persistence("client.list", err)
	}

	clients, pageInfo, err := pagination.BuildCursorPage(items, limit, func(c domain.Client) pagination.Cursor {
		return pagination.Cursor{ID: int64(c.ID), CreatedAt: c.CreatedAt}
	})
	if err != nil {
		return domain.ListClientResponse{}, docdomain.Persistence("client.list", err)
	}

	return domain.ListClientResponse{PageInfo: pageInfo, Clients: clients}, nil
}
