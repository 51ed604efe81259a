package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"aadhar-otp/internal/models"
	"aadhar-otp/internal/utils"
)

const (
	mappedAadhar   = "111122223333"
	mappedEmail    = "asha@example.com"
	noEmailAadhar  = "444455556666"
	unmappedAadhar = "999988887777"
	fallbackEmail  = "mock@local.dev"
	fallbackCode   = "123456"
)

type otpFixture struct {
	svc       OTPService
	repo      *fakeOTPRepo
	directory *fakeDirectory
	email     *fakeEmailService
	clock     *fakeClock
	codes     *codeSequence
}

func newOTPFixture(t *testing.T, fallback bool, maxAttempts int, codes ...string) *otpFixture {
	t.Helper()

	f := &otpFixture{
		repo: &fakeOTPRepo{},
		directory: &fakeDirectory{identities: map[string]*models.Identity{
			mappedAadhar:  {AadharNumber: mappedAadhar, RegisteredEmail: mappedEmail},
			noEmailAadhar: {AadharNumber: noEmailAadhar},
		}},
		email: &fakeEmailService{},
		clock: &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		codes: &codeSequence{codes: codes},
	}

	var resolver ContactResolver = NewProductionResolver(f.directory)
	if fallback {
		resolver = NewDevelopmentFallbackResolver(f.directory, fallbackEmail, fallbackCode)
	}

	f.svc = NewOTPService(resolver, f.repo, utils.NewBcryptHasher(bcrypt.MinCost), f.email, OTPOptions{
		CallTimeout:  time.Second,
		MaxAttempts:  maxAttempts,
		Now:          f.clock.Now,
		GenerateCode: f.codes.Next,
	})
	return f
}

func TestSendThenVerifySucceedsOnce(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")
	ctx := context.Background()

	result, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)
	assert.False(t, result.Fallback)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, mappedEmail, f.email.sent[0].to)
	assert.Equal(t, "Your OTP Code for Aadhaar Verification", f.email.sent[0].subject)
	assert.Equal(t, "Your OTP is 482913. It expires in 2 minutes.", f.email.sent[0].body)

	identity, err := f.svc.VerifyOTP(ctx, mappedAadhar, "482913")
	require.NoError(t, err)
	assert.Equal(t, mappedEmail, identity.RegisteredEmail)
	assert.Equal(t, 0, f.repo.count(mappedEmail))

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "482913")
	assert.ErrorIs(t, err, ErrNotFoundOrUsed)
}

func TestSendStoresHashNotCode(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")

	_, err := f.svc.SendOTP(context.Background(), mappedAadhar)
	require.NoError(t, err)

	record, err := f.repo.FindLatestByEmail(context.Background(), mappedEmail)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.NotEqual(t, "482913", record.OTPHash)
	assert.Equal(t, f.clock.Now().Add(OTPTTL), record.ExpiresAt)
}

func TestVerifyWrongCodeKeepsRecordUsable(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "000000")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
	assert.Equal(t, 1, f.repo.count(mappedEmail))

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "482913")
	assert.NoError(t, err)
}

func TestVerifyAfterTTLIsExpired(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)

	f.clock.Advance(OTPTTL)

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "482913")
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, 0, f.repo.count(mappedEmail), "expired record should be reaped")
}

func TestVerifyJustBeforeTTL(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)

	f.clock.Advance(OTPTTL - time.Second)

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "482913")
	assert.NoError(t, err)
}

func TestFallbackSendAndVerify(t *testing.T) {
	f := newOTPFixture(t, true, 0)
	ctx := context.Background()

	result, err := f.svc.SendOTP(ctx, unmappedAadhar)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Empty(t, f.email.sent, "fallback codes are never emailed")
	assert.Equal(t, 1, f.repo.count(fallbackEmail))

	identity, err := f.svc.VerifyOTP(ctx, unmappedAadhar, fallbackCode)
	require.NoError(t, err)
	assert.Equal(t, &models.Identity{AadharNumber: unmappedAadhar}, identity)
}

func TestFallbackStillUsesDirectoryWhenMapped(t *testing.T) {
	f := newOTPFixture(t, true, 0, "771204")
	ctx := context.Background()

	result, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	require.Len(t, f.email.sent, 1)

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, fallbackCode)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "771204")
	assert.NoError(t, err)
}

func TestProductionResolverRejectsUnmapped(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")

	_, err := f.svc.SendOTP(context.Background(), unmappedAadhar)
	assert.ErrorIs(t, err, ErrContactUnavailable)
	assert.Equal(t, 0, f.repo.count(fallbackEmail))
}

func TestSendWithoutRegisteredEmail(t *testing.T) {
	for _, fallback := range []bool{false, true} {
		f := newOTPFixture(t, fallback, 0, "482913")

		_, err := f.svc.SendOTP(context.Background(), noEmailAadhar)
		assert.ErrorIs(t, err, ErrContactUnavailable)
		assert.Empty(t, f.repo.records)
		assert.Empty(t, f.email.sent)
	}
}

func TestVerifyWithoutRegisteredEmail(t *testing.T) {
	f := newOTPFixture(t, true, 0)

	_, err := f.svc.VerifyOTP(context.Background(), noEmailAadhar, "123456")
	assert.ErrorIs(t, err, ErrNotFoundOrUsed)
}

func TestSecondSendSupersedesFirst(t *testing.T) {
	f := newOTPFixture(t, false, 0, "111111", "222222")
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)
	assert.Equal(t, 2, f.repo.count(mappedEmail))

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "111111")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "222222")
	assert.NoError(t, err)
}

func TestInvalidRequests(t *testing.T) {
	f := newOTPFixture(t, true, 0)
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.VerifyOTP(ctx, "", "123456")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestEmailFailureKeepsRecord(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")
	f.email.err = errors.New("smtp: connection refused")

	_, err := f.svc.SendOTP(context.Background(), mappedAadhar)
	assert.ErrorIs(t, err, ErrInfra)
	assert.Equal(t, 1, f.repo.count(mappedEmail))
}

func TestInfraFailures(t *testing.T) {
	t.Run("directory down", func(t *testing.T) {
		f := newOTPFixture(t, true, 0)
		f.directory.err = errors.New("server selection timeout")

		_, err := f.svc.SendOTP(context.Background(), mappedAadhar)
		assert.ErrorIs(t, err, ErrInfra)
		_, err = f.svc.VerifyOTP(context.Background(), mappedAadhar, "123456")
		assert.ErrorIs(t, err, ErrInfra)
	})

	t.Run("store create fails", func(t *testing.T) {
		f := newOTPFixture(t, false, 0, "482913")
		f.repo.createErr = errors.New("write failed")

		_, err := f.svc.SendOTP(context.Background(), mappedAadhar)
		assert.ErrorIs(t, err, ErrInfra)
		assert.Empty(t, f.email.sent)
	})

	t.Run("store find fails", func(t *testing.T) {
		f := newOTPFixture(t, false, 0)
		f.repo.findErr = errors.New("read failed")

		_, err := f.svc.VerifyOTP(context.Background(), mappedAadhar, "482913")
		assert.ErrorIs(t, err, ErrInfra)
	})

	t.Run("generator fails", func(t *testing.T) {
		f := newOTPFixture(t, false, 0)

		_, err := f.svc.SendOTP(context.Background(), mappedAadhar)
		assert.ErrorIs(t, err, ErrInfra)
	})

	t.Run("malformed stored hash", func(t *testing.T) {
		f := newOTPFixture(t, false, 0)
		_, err := f.repo.Create(context.Background(), &models.OTP{
			Email:     mappedEmail,
			OTPHash:   "plaintext-by-mistake",
			ExpiresAt: f.clock.Now().Add(time.Minute),
			CreatedAt: f.clock.Now(),
		})
		require.NoError(t, err)

		_, err = f.svc.VerifyOTP(context.Background(), mappedAadhar, "482913")
		assert.ErrorIs(t, err, ErrInfra)
	})
}

func TestAttemptLimit(t *testing.T) {
	f := newOTPFixture(t, false, 3, "482913")
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "000001")
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "000002")
	assert.ErrorIs(t, err, ErrAttemptsExceeded)

	_, err = f.svc.VerifyOTP(ctx, mappedAadhar, "482913")
	assert.ErrorIs(t, err, ErrNotFoundOrUsed)
}

func TestConcurrentVerifyHasOneWinner(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyOTP(ctx, mappedAadhar, "482913")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrNotFoundOrUsed)
	}
	assert.Equal(t, 1, successes)
}

func TestSendIgnoresCallerCancellation(t *testing.T) {
	f := newOTPFixture(t, false, 0, "482913")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SendOTP(ctx, mappedAadhar)
	require.NoError(t, err)
	assert.NoError(t, f.repo.ctxErrOnCreate)
	assert.Len(t, f.email.sent, 1)
}
