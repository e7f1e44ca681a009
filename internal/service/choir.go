package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/auth"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
)

// maxCodeAttempts bounds how often Create redraws a login code that
// collides with an existing one.
const maxCodeAttempts = 5

// ChoirInput is the editable part of a member profile.
type ChoirInput struct {
	Name             string
	Email            string
	Level            string
	Role             string
	VoiceDesignation *string
}

// ChoirService manages member accounts for administrators.
type ChoirService struct {
	repo    repository.ChoirRepository
	newCode func() (string, error)
	logger  *slog.Logger
}

// NewChoirService creates a ChoirService.
func NewChoirService(repo repository.ChoirRepository, logger *slog.Logger) *ChoirService {
	return &ChoirService{repo: repo, newCode: auth.NewCode, logger: logger}
}

func (in ChoirInput) validate() (ChoirInput, error) {
	var err error
	if in.Name, err = requireText("name", "name", in.Name); err != nil {
		return in, err
	}
	if in.Email, err = requireText("email", "email", in.Email); err != nil {
		return in, err
	}
	if addr, perr := mail.ParseAddress(in.Email); perr != nil || addr.Address != in.Email {
		return in, apperror.ValidationFailed("email", "The email field must be a valid email address.")
	}
	if in.Level, err = requireText("level", "level", in.Level); err != nil {
		return in, err
	}
	if in.Role, err = requireText("role", "role", in.Role); err != nil {
		return in, err
	}
	if in.VoiceDesignation, err = optionalText("voice_designation", "voice designation", in.VoiceDesignation); err != nil {
		return in, err
	}
	return in, nil
}

// Create validates in and adds a member with a freshly generated login code.
// The member starts logged out.
func (s *ChoirService) Create(ctx context.Context, in ChoirInput) (*model.Choir, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generating login code: %w", err)
		}

		c := &model.Choir{
			Name:             in.Name,
			Email:            in.Email,
			Level:            in.Level,
			Role:             in.Role,
			VoiceDesignation: in.VoiceDesignation,
			Code:             code,
		}
		err = s.repo.Create(ctx, c)
		if err == nil {
			s.logger.Info("choir member created", slog.String("choir", c.UUID))
			return c, nil
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Field == "code" && attempt < maxCodeAttempts {
			continue
		}
		if errors.As(err, &appErr) && appErr.Field == "email" {
			return nil, apperror.ValidationFailed("email", appErr.Message)
		}
		return nil, fmt.Errorf("creating choir member: %w", err)
	}
}

// Get returns one member.
func (s *ChoirService) Get(ctx context.Context, uuid string) (*model.Choir, error) {
	return s.repo.GetByUUID(ctx, uuid)
}

// List returns one page of members, newest first.
func (s *ChoirService) List(ctx context.Context, page int) (Page[model.Choir], error) {
	opts, page := pageOptions(page)
	items, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return Page[model.Choir]{}, fmt.Errorf("listing choir members: %w", err)
	}
	return Page[model.Choir]{Items: items, CurrentPage: page, PerPage: PerPage, Total: total}, nil
}

// Update replaces the profile of a member. Code and session are kept.
func (s *ChoirService) Update(ctx context.Context, uuid string, in ChoirInput) (*model.Choir, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	c, err := s.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Email = in.Email
	c.Level = in.Level
	c.Role = in.Role
	c.VoiceDesignation = in.VoiceDesignation

	if err := s.repo.Update(ctx, c); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Field == "email" {
			return nil, apperror.ValidationFailed("email", appErr.Message)
		}
		return nil, err
	}
	return c, nil
}

// Delete removes a member.
func (s *ChoirService) Delete(ctx context.Context, uuid string) error {
	if err := s.repo.Delete(ctx, uuid); err != nil {
		return err
	}
	s.logger.Info("choir member deleted", slog.String("choir", uuid))
	return nil
}
