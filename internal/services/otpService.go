package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"aadhar-otp/internal/metrics"
	"aadhar-otp/internal/models"
	"aadhar-otp/internal/repositories"
	"aadhar-otp/internal/utils"
)

// OTPTTL is how long an issued passcode stays valid.
const OTPTTL = 2 * time.Minute

const (
	otpEmailSubject = "Your OTP Code for Aadhaar Verification"
	otpEmailBody    = "Your OTP is %s. It expires in %d minutes."
)

type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) (bool, error)
}

type OTPService interface {
	SendOTP(ctx context.Context, aadhar string) (*SendResult, error)
	VerifyOTP(ctx context.Context, aadhar, otpCode string) (*models.Identity, error)
}

type SendResult struct {
	// Fallback is set when the code went to the development fallback contact
	// instead of a real directory entry.
	Fallback bool
}

type OTPOptions struct {
	// CallTimeout bounds each directory, store and email call. Zero disables it.
	CallTimeout time.Duration
	// MaxAttempts invalidates a record after that many wrong codes. Zero means unlimited.
	MaxAttempts int

	Now          func() time.Time
	GenerateCode func() (string, error)
}

type otpService struct {
	resolver     ContactResolver
	otpRepo      repositories.OTPRepository
	hasher       Hasher
	emailService EmailService
	opts         OTPOptions
}

func NewOTPService(resolver ContactResolver, otpRepo repositories.OTPRepository, hasher Hasher, emailService EmailService, opts OTPOptions) OTPService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GenerateCode == nil {
		opts.GenerateCode = utils.GenerateSecureOTP
	}
	return &otpService{
		resolver:     resolver,
		otpRepo:      otpRepo,
		hasher:       hasher,
		emailService: emailService,
		opts:         opts,
	}
}

func (s *otpService) SendOTP(ctx context.Context, aadhar string) (*SendResult, error) {
	aadhar = strings.TrimSpace(aadhar)
	if aadhar == "" {
		return nil, fmt.Errorf("%w: aadhar required", ErrInvalidRequest)
	}
	// A send that has started runs to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	res, err := s.resolve(ctx, aadhar)
	if err != nil {
		return nil, err
	}

	code := res.FixedCode
	if !res.Fallback {
		code, err = s.opts.GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("%w: generate otp: %w", ErrInfra, err)
		}
	}

	hashed, err := s.hasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfra, err)
	}

	now := s.opts.Now()
	record := &models.OTP{
		Email:     res.Email,
		OTPHash:   hashed,
		ExpiresAt: now.Add(OTPTTL),
		CreatedAt: now,
	}
	callCtx, cancel := s.callContext(ctx)
	_, err = s.otpRepo.Create(callCtx, record)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfra, err)
	}

	if res.Fallback {
		log.Warn().Str("email", res.Email).Str("otp", code).Msg("Mock OTP generated for identity without directory mapping")
		metrics.OTPSentTotal.WithLabelValues("fallback").Inc()
		return &SendResult{Fallback: true}, nil
	}

	callCtx, cancel = s.callContext(ctx)
	err = s.emailService.SendEmail(callCtx, res.Email, otpEmailSubject, fmt.Sprintf(otpEmailBody, code, int(OTPTTL.Minutes())))
	cancel()
	if err != nil {
		// The stored record is kept; the user can request another code.
		metrics.OTPEmailFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: send otp email: %w", ErrInfra, err)
	}

	metrics.OTPSentTotal.WithLabelValues("production").Inc()
	log.Info().Str("email", res.Email).Str("otp_id", record.ID.Hex()).Msg("OTP sent")
	return &SendResult{}, nil
}

func (s *otpService) VerifyOTP(ctx context.Context, aadhar, otpCode string) (*models.Identity, error) {
	aadhar = strings.TrimSpace(aadhar)
	otpCode = strings.TrimSpace(otpCode)
	if aadhar == "" || otpCode == "" {
		return nil, fmt.Errorf("%w: aadhar and otp required", ErrInvalidRequest)
	}
	ctx = context.WithoutCancel(ctx)

	res, err := s.resolve(ctx, aadhar)
	if err != nil {
		if errors.Is(err, ErrContactUnavailable) {
			// Nothing can have been issued to an empty address.
			return nil, s.verifyFailed(ErrNotFoundOrUsed, "not_found")
		}
		return nil, err
	}

	callCtx, cancel := s.callContext(ctx)
	record, err := s.otpRepo.FindLatestByEmail(callCtx, res.Email)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfra, err)
	}
	if record == nil {
		return nil, s.verifyFailed(ErrNotFoundOrUsed, "not_found")
	}

	if record.Expired(s.opts.Now()) {
		s.reap(ctx, record)
		return nil, s.verifyFailed(ErrExpired, "expired")
	}

	ok, err := s.hasher.Verify(otpCode, record.OTPHash)
	if err != nil {
		log.Error().Err(err).Str("otp_id", record.ID.Hex()).Msg("Stored OTP hash is unusable")
		return nil, fmt.Errorf("%w: %w", ErrInfra, err)
	}
	if !ok {
		return nil, s.rejectCode(ctx, record)
	}

	callCtx, cancel = s.callContext(ctx)
	removed, err := s.otpRepo.Delete(callCtx, record.ID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfra, err)
	}
	if !removed {
		// A concurrent verification consumed it first.
		return nil, s.verifyFailed(ErrNotFoundOrUsed, "not_found")
	}

	metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
	log.Info().Str("email", res.Email).Bool("fallback", res.Fallback).Msg("OTP verified")
	return res.Identity, nil
}

func (s *otpService) resolve(ctx context.Context, aadhar string) (*Resolution, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.resolver.Resolve(callCtx, aadhar)
}

// rejectCode handles a wrong code. With attempt limiting on, the failure is
// counted on the record and the record dropped once the limit is hit.
func (s *otpService) rejectCode(ctx context.Context, record *models.OTP) error {
	if s.opts.MaxAttempts <= 0 {
		return s.verifyFailed(ErrInvalidCode, "invalid_code")
	}

	callCtx, cancel := s.callContext(ctx)
	attempts, err := s.otpRepo.IncrementFailedAttempts(callCtx, record.ID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInfra, err)
	}
	if attempts >= s.opts.MaxAttempts {
		s.reap(ctx, record)
		log.Warn().Str("email", record.Email).Int("attempts", attempts).Msg("OTP invalidated after too many attempts")
		return s.verifyFailed(ErrAttemptsExceeded, "attempts_exceeded")
	}
	return s.verifyFailed(ErrInvalidCode, "invalid_code")
}

// reap deletes a dead record. Failure only leaves an orphan behind, so it is
// logged and not returned.
func (s *otpService) reap(ctx context.Context, record *models.OTP) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if _, err := s.otpRepo.Delete(callCtx, record.ID); err != nil {
		log.Warn().Err(err).Str("otp_id", record.ID.Hex()).Msg("Failed to remove dead OTP")
	}
}

func (s *otpService) verifyFailed(kind error, result string) error {
	metrics.OTPVerificationsTotal.WithLabelValues(result).Inc()
	return kind
}

func (s *otpService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}
