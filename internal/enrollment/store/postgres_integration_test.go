//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "careon/pkg/domain"
	"careon/pkg/testutil/containers"
)

type PostgresSuite struct {
	repositorySuite
	pg *containers.PostgresContainer
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(Migrate(context.Background(), s.pg.DB))
}

func (s *PostgresSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.Truncate(s.ctx, "enrollment_applications"))
	s.repo = NewPostgres(s.pg.DB)
	s.now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresSuite) TestMigrateIsIdempotent() {
	s.NoError(Migrate(s.ctx, s.pg.DB))
}

func (s *PostgresSuite) TestSearchEscapesWildcards() {
	owner := s.draft(id.NewUserID(), "100%_Kim", s.now)
	_, err := s.repo.Save(s.ctx, owner)
	s.Require().NoError(err)
	_, err = s.repo.Save(s.ctx, s.draft(id.NewUserID(), "100 Kim", s.now))
	s.Require().NoError(err)

	res, err := s.repo.FindAll(s.ctx, filtersSearch("100%_"))
	s.Require().NoError(err)
	s.Equal(1, res.Total)
}
