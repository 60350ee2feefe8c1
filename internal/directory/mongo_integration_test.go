//go:build integration

package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"concur/internal/directory"
	"concur/pkg/platform/sentinel"
	"concur/pkg/testutil/containers"
)

const testDatabase = "concur_directory_test"

type MongoDirectorySuite struct {
	suite.Suite
	mongo *containers.MongoContainer
	dir   *directory.Mongo
}

func TestMongoDirectorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MongoDirectorySuite))
}

func (s *MongoDirectorySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.mongo = mgr.GetMongo(s.T())
	s.dir = directory.NewMongo(s.mongo.Client, testDatabase)
}

func (s *MongoDirectorySuite) SetupTest() {
	s.Require().NoError(s.mongo.DropDatabase(context.Background(), testDatabase))
}

func (s *MongoDirectorySuite) seed(cp directory.CollectionPoint) {
	coll := s.mongo.Client.Database(testDatabase).Collection("collection_points")
	_, err := coll.InsertOne(context.Background(), cp)
	s.Require().NoError(err)
}

func (s *MongoDirectorySuite) TestLookupRoundTrip() {
	ctx := context.Background()
	s.seed(directory.CollectionPoint{
		ID:            "cp-1",
		ApplicationID: "app-1",
		Name:          "Signup form",
		Status:        "active",
		DataElements: []directory.DataElementDef{
			{
				ID:            "email",
				Title:         "Email address",
				ExpiryDays:    30,
				RetentionDays: 365,
				Purposes: []directory.PurposeDef{
					{ID: "p1", Description: "Marketing emails"},
				},
			},
		},
	})

	cp, err := s.dir.CollectionPoint(ctx, "cp-1", "app-1")
	s.Require().NoError(err)
	s.Equal("Signup form", cp.Name)
	s.Require().Len(cp.DataElements, 1)
	s.Equal(30, cp.DataElements[0].ExpiryDays)
	s.Require().Len(cp.DataElements[0].Purposes, 1)
	s.Equal("Marketing emails", cp.DataElements[0].Purposes[0].Description)
}

func (s *MongoDirectorySuite) TestUnknownPairIsNotFound() {
	ctx := context.Background()
	s.seed(directory.CollectionPoint{ID: "cp-1", ApplicationID: "app-1"})

	_, err := s.dir.CollectionPoint(ctx, "cp-missing", "app-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.dir.CollectionPoint(ctx, "cp-1", "app-other")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
