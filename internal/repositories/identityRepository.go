package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"aadhar-otp/internal/database"
	"aadhar-otp/internal/models"
	"aadhar-otp/internal/utils"
)

const identityCollection = "mappers"

// IdentityRepository is the read-only Aadhaar directory.
type IdentityRepository interface {
	FindByAadhar(ctx context.Context, aadhar string) (*models.Identity, error)
}

type identityRepository struct {
	db database.Service
}

func NewIdentityRepository(db database.Service) IdentityRepository {
	return &identityRepository{db: db}
}

// FindByAadhar returns nil, nil when no mapping exists.
func (r *identityRepository) FindByAadhar(ctx context.Context, aadhar string) (*models.Identity, error) {
	failed := false
	defer utils.ObserveQuery("findByAadhar", "identity", &failed)()

	var identity models.Identity
	err := r.db.Database().Collection(identityCollection).FindOne(ctx, bson.M{"aadharNumber": aadhar}).Decode(&identity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		failed = true
		log.Error().Err(err).Msg("Failed to look up Aadhaar mapping")
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return &identity, nil
}
