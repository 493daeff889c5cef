package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace/internal/dependencies/mocks"
	"github.com/mcoot/typerace/internal/model"
	"github.com/mcoot/typerace/internal/storage/memory"
	"github.com/mcoot/typerace/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.random = mocks.NewMockRandom()
	service, err := New(s.storage, s.random, DefaultConfig(), testutil.NopLogger())
	s.Require().NoError(err)
	s.service = service
	s.ctx = context.Background()
}

func sha256Base64(password string) string {
	d := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(d[:])
}

// Register tests

func (s *ServiceSuite) TestRegisterPersistsRecord() {
	p, err := s.service.Register(s.ctx, "alice", "secret")
	s.Require().NoError(err)
	s.Equal("alice", p.Username)
	s.Equal(model.InitialRanking, p.Ranking())

	recs, err := s.storage.LoadPlayers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]model.PlayerRecord{{Username: "alice", PasswordHash: sha256Base64("secret"), Ranking: 0}}, recs)
}

func (s *ServiceSuite) TestRegisterDuplicate() {
	_, err := s.service.Register(s.ctx, "alice", "secret")
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, "alice", "other")
	s.ErrorIs(err, model.ErrUsernameExists)
}

func (s *ServiceSuite) TestRegisterRejectsBadUsernames() {
	for _, name := range []string{"", "   ", "a,b", "line\nbreak"} {
		_, err := s.service.Register(s.ctx, name, "pw")
		s.ErrorIs(err, model.ErrInvalidUsername, "username %q", name)
	}
}

// Login tests

func (s *ServiceSuite) TestLoginReturnsSharedPlayer() {
	registered, err := s.service.Register(s.ctx, "alice", "secret")
	s.Require().NoError(err)

	p, err := s.service.Login(s.ctx, "alice", "secret")
	s.Require().NoError(err)
	s.Same(registered, p)
}

func (s *ServiceSuite) TestLoginWrongPassword() {
	_, _ = s.service.Register(s.ctx, "alice", "secret")

	_, err := s.service.Login(s.ctx, "alice", "Secret")
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginUnknownUser() {
	_, err := s.service.Login(s.ctx, "nobody", "secret")
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoadFromStore() {
	s.Require().NoError(s.storage.AppendPlayer(s.ctx, model.PlayerRecord{
		Username: "bob", PasswordHash: sha256Base64("hunter2"), Ranking: 12,
	}))
	s.Require().NoError(s.service.Load(s.ctx))

	p, err := s.service.Login(s.ctx, "bob", "hunter2")
	s.Require().NoError(err)
	s.Equal(12, p.Ranking())
}

// Save tests

func (s *ServiceSuite) TestSaveAllWritesRankings() {
	p, _ := s.service.Register(s.ctx, "alice", "a")
	_, _ = s.service.Register(s.ctx, "bob", "b")
	p.AddRanking(3)

	s.Require().NoError(s.service.SaveAll(s.ctx))

	recs, err := s.storage.LoadPlayers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(3, recs[0].Ranking)
	s.Equal("bob", recs[1].Username)
}

type failingStorage struct {
	*memory.Storage
}

var errDiskFull = errors.New("disk full")

func (f failingStorage) SavePlayers(ctx context.Context, recs []model.PlayerRecord) error {
	return errDiskFull
}

func (s *ServiceSuite) TestSaveAllSurfacesStoreErrors() {
	service, err := New(failingStorage{memory.New()}, s.random, DefaultConfig(), testutil.NopLogger())
	s.Require().NoError(err)

	s.ErrorIs(service.SaveAll(s.ctx), errDiskFull)
}

// Lookup tests

func (s *ServiceSuite) TestPlayerLookup() {
	_, _ = s.service.Register(s.ctx, "alice", "a")

	p, err := s.service.Player("alice")
	s.Require().NoError(err)
	s.Equal("alice", p.Username)

	_, err = s.service.Player("nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestLeaderboardOrdering() {
	a, _ := s.service.Register(s.ctx, "alice", "a")
	b, _ := s.service.Register(s.ctx, "bob", "b")
	_, _ = s.service.Register(s.ctx, "carol", "c")
	a.AddRanking(2)
	b.AddRanking(5)

	board := s.service.Leaderboard()
	s.Require().Len(board, 3)
	s.Equal("bob", board[0].Username)
	s.Equal("alice", board[1].Username)
	s.Equal("carol", board[2].Username)
}

// Token tests

func (s *ServiceSuite) TestNewToken() {
	s.random.QueueBetween(4242)
	s.Equal("alice-4242", s.service.NewToken("alice"))

	// drained queue falls back to the lower bound
	s.Equal("alice-1000", s.service.NewToken("alice"))
}

// Hasher tests

func (s *ServiceSuite) TestHashers() {
	sha2, err := NewHasher(HashSHA256)
	s.Require().NoError(err)
	s.Equal(sha256Base64("pw"), sha2.Hash("pw"))
	s.Equal(sha2.Hash("pw"), sha2.Hash("pw"))

	sha3h, err := NewHasher(HashSHA3_256)
	s.Require().NoError(err)
	s.NotEqual(sha2.Hash("pw"), sha3h.Hash("pw"))
	s.Equal(HashSHA3_256, sha3h.Algorithm())

	_, err = NewHasher("md5")
	s.Error(err)
}

func (s *ServiceSuite) TestSHA3Service() {
	service, err := New(s.storage, s.random, Config{HashAlgorithm: HashSHA3_256}, testutil.NopLogger())
	s.Require().NoError(err)

	_, err = service.Register(s.ctx, "alice", "pw")
	s.Require().NoError(err)
	_, err = service.Login(s.ctx, "alice", "pw")
	s.NoError(err)
}
