package services

import (
	"context"
	"fmt"
	"strings"

	"aadhar-otp/internal/models"
	"aadhar-otp/internal/repositories"
)

// Resolution is where a passcode for an identity goes. FixedCode is set only
// for fallback resolutions.
type Resolution struct {
	Email     string
	Identity  *models.Identity
	Fallback  bool
	FixedCode string
}

// ContactResolver maps an Aadhaar number to the contact address its
// passcodes are stored under and delivered to. Send and verify must use the
// same resolver so both land on the same record key.
type ContactResolver interface {
	Resolve(ctx context.Context, aadhar string) (*Resolution, error)
}

// ProductionResolver only accepts identities present in the directory.
type ProductionResolver struct {
	directory repositories.IdentityRepository
}

func NewProductionResolver(directory repositories.IdentityRepository) *ProductionResolver {
	return &ProductionResolver{directory: directory}
}

func (r *ProductionResolver) Resolve(ctx context.Context, aadhar string) (*Resolution, error) {
	identity, err := lookup(ctx, r.directory, aadhar)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrContactUnavailable
	}
	return resolutionFor(identity)
}

// DevelopmentFallbackResolver sends identities missing from the directory to
// a fixed address with a fixed, well-known code, so environments without
// directory data can still exercise the flow.
type DevelopmentFallbackResolver struct {
	directory repositories.IdentityRepository
	email     string
	code      string
}

func NewDevelopmentFallbackResolver(directory repositories.IdentityRepository, email, code string) *DevelopmentFallbackResolver {
	return &DevelopmentFallbackResolver{directory: directory, email: email, code: code}
}

func (r *DevelopmentFallbackResolver) Resolve(ctx context.Context, aadhar string) (*Resolution, error) {
	identity, err := lookup(ctx, r.directory, aadhar)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return &Resolution{
			Email:     r.email,
			Identity:  &models.Identity{AadharNumber: aadhar},
			Fallback:  true,
			FixedCode: r.code,
		}, nil
	}
	return resolutionFor(identity)
}

func lookup(ctx context.Context, directory repositories.IdentityRepository, aadhar string) (*models.Identity, error) {
	identity, err := directory.FindByAadhar(ctx, aadhar)
	if err != nil {
		return nil, fmt.Errorf("%w: directory lookup: %w", ErrInfra, err)
	}
	return identity, nil
}

func resolutionFor(identity *models.Identity) (*Resolution, error) {
	email := strings.TrimSpace(identity.RegisteredEmail)
	if email == "" {
		return nil, ErrContactUnavailable
	}
	return &Resolution{Email: email, Identity: identity}, nil
}
