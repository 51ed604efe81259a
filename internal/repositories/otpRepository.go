package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aadhar-otp/internal/database"
	"aadhar-otp/internal/models"
	"aadhar-otp/internal/utils"
)

const otpCollection = "otps"

type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) (*models.OTP, error)
	FindLatestByEmail(ctx context.Context, email string) (*models.OTP, error)
	Delete(ctx context.Context, otpID primitive.ObjectID) (bool, error)
	IncrementFailedAttempts(ctx context.Context, otpID primitive.ObjectID) (int, error)
	EnsureIndexes(ctx context.Context, retention time.Duration) error
}

type otpRepository struct {
	db database.Service
}

func NewOTPRepository(db database.Service) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(otpCollection)
}

func (r *otpRepository) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	failed := false
	defer utils.ObserveQuery("create", "otp", &failed)()

	otp.ID = primitive.NewObjectID()
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now()
	}
	if _, err := r.collection().InsertOne(ctx, otp); err != nil {
		failed = true
		log.Error().Err(err).Str("email", otp.Email).Msg("Failed to insert OTP into database")
		return nil, fmt.Errorf("failed to create otp: %w", err)
	}
	return otp, nil
}

// FindLatestByEmail returns the most recently created record for email, or
// nil when there is none.
func (r *otpRepository) FindLatestByEmail(ctx context.Context, email string) (*models.OTP, error) {
	failed := false
	defer utils.ObserveQuery("findLatestByEmail", "otp", &failed)()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var otp models.OTP
	err := r.collection().FindOne(ctx, bson.M{"email": email}, opts).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		failed = true
		log.Error().Err(err).Str("email", email).Msg("Failed to fetch OTP")
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return &otp, nil
}

// Delete removes a single record by id. It reports whether this call removed
// it, so concurrent verifications can tell which one won.
func (r *otpRepository) Delete(ctx context.Context, otpID primitive.ObjectID) (bool, error) {
	failed := false
	defer utils.ObserveQuery("delete", "otp", &failed)()

	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": otpID})
	if err != nil {
		failed = true
		log.Error().Err(err).Str("otp_id", otpID.Hex()).Msg("Failed to delete OTP")
		return false, fmt.Errorf("failed to delete otp: %w", err)
	}
	return result.DeletedCount == 1, nil
}

// IncrementFailedAttempts bumps the failure counter and returns the new value.
// A record deleted in the meantime yields 0.
func (r *otpRepository) IncrementFailedAttempts(ctx context.Context, otpID primitive.ObjectID) (int, error) {
	failed := false
	defer utils.ObserveQuery("incrementFailedAttempts", "otp", &failed)()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var otp models.OTP
	err := r.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": otpID},
		bson.M{"$inc": bson.M{"failed_attempts": 1}},
		opts,
	).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		failed = true
		log.Error().Err(err).Str("otp_id", otpID.Hex()).Msg("Failed to increment OTP attempts")
		return 0, fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return otp.FailedAttempts, nil
}

// EnsureIndexes creates the lookup index and a TTL index that lets MongoDB
// drop records retention after they expire.
func (r *otpRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("email_created_at"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at_ttl").SetExpireAfterSeconds(int32(retention.Seconds())),
		},
	}
	if _, err := r.collection().Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create otp indexes: %w", err)
	}
	return nil
}
