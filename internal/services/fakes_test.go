package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"aadhar-otp/internal/models"
)

type fakeOTPRepo struct {
	mu      sync.Mutex
	records []*models.OTP

	createErr error
	findErr   error
	deleteErr error
	incErr    error

	ctxErrOnCreate error
}

func (f *fakeOTPRepo) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrOnCreate = ctx.Err()
	if f.createErr != nil {
		return nil, f.createErr
	}
	otp.ID = primitive.NewObjectID()
	stored := *otp
	f.records = append(f.records, &stored)
	return otp, nil
}

func (f *fakeOTPRepo) FindLatestByEmail(ctx context.Context, email string) (*models.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var matches []*models.OTP
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].Email == email {
			matches = append(matches, f.records[i])
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	found := *matches[0]
	return &found, nil
}

func (f *fakeOTPRepo) Delete(ctx context.Context, otpID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	for i, r := range f.records {
		if r.ID == otpID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOTPRepo) IncrementFailedAttempts(ctx context.Context, otpID primitive.ObjectID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return 0, f.incErr
	}
	for _, r := range f.records {
		if r.ID == otpID {
			r.FailedAttempts++
			return r.FailedAttempts, nil
		}
	}
	return 0, nil
}

func (f *fakeOTPRepo) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	return nil
}

func (f *fakeOTPRepo) count(email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.Email == email {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	identities map[string]*models.Identity
	err        error
}

func (f *fakeDirectory) FindByAadhar(ctx context.Context, aadhar string) (*models.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identities[aadhar], nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmailService struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmailService) SendEmail(ctx context.Context, to, subject, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: msg})
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// codeSequence hands out the given codes in order.
type codeSequence struct {
	mu    sync.Mutex
	codes []string
}

func (s *codeSequence) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "", errors.New("code sequence exhausted")
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code, nil
}
