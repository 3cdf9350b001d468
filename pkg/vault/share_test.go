package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"vaultfs/pkg/models"
)

// ShareTestSuite tests share-token issue, resolve and revoke.
type ShareTestSuite struct {
	suite.Suite
	tempDir string
	store   *Store
	user    *models.User
}

func (s *ShareTestSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "vault-share-test-*")
	s.Require().NoError(err)

	s.store = New(filepath.Join(s.tempDir, "data"), filepath.Join(s.tempDir, "temp"))
	s.user = &models.User{ID: 1, Username: "alice", QuotaBytes: 1024 * 1024}
}

func (s *ShareTestSuite) TearDownTest() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func (s *ShareTestSuite) upload(name string) string {
	result, err := s.store.SaveFile(s.user, strings.NewReader("shared content"), 14, name, "")
	s.Require().NoError(err)
	return result.RelativePath
}

// TestIssueResolveRevoke tests the full token lifecycle.
func (s *ShareTestSuite) TestIssueResolveRevoke() {
	rel := s.upload("doc.txt")

	token, err := s.store.IssueShareToken(s.user.ID, rel)
	s.Require().NoError(err)
	s.NotEmpty(token)

	userID, path, err := s.store.ResolveShareToken(token)
	s.Require().NoError(err)
	s.Equal(s.user.ID, userID)
	s.Equal(rel, path)

	revoked, err := s.store.RevokeShareToken(s.user.ID, rel)
	s.Require().NoError(err)
	s.True(revoked)

	var notFound NotFoundError
	_, _, err = s.store.ResolveShareToken(token)
	s.ErrorAs(err, &notFound)
}

// TestReissueReplacesToken tests that the old token dies when a new one is
// issued.
func (s *ShareTestSuite) TestReissueReplacesToken() {
	rel := s.upload("doc.txt")

	first, err := s.store.IssueShareToken(s.user.ID, rel)
	s.Require().NoError(err)
	second, err := s.store.IssueShareToken(s.user.ID, rel)
	s.Require().NoError(err)
	s.NotEqual(first, second)

	var notFound NotFoundError
	_, _, err = s.store.ResolveShareToken(first)
	s.ErrorAs(err, &notFound)

	_, path, err := s.store.ResolveShareToken(second)
	s.Require().NoError(err)
	s.Equal(rel, path)
}

// TestIssueWithoutRecord tests that an untracked path cannot be shared.
func (s *ShareTestSuite) TestIssueWithoutRecord() {
	_, err := s.store.IssueShareToken(s.user.ID, "never-uploaded.txt")
	var notFound NotFoundError
	s.ErrorAs(err, &notFound)
}

// TestRevokeWithoutToken tests that revoking is a no-op report, not an error.
func (s *ShareTestSuite) TestRevokeWithoutToken() {
	rel := s.upload("doc.txt")

	revoked, err := s.store.RevokeShareToken(s.user.ID, rel)
	s.Require().NoError(err)
	s.False(revoked)

	revoked, err = s.store.RevokeShareToken(s.user.ID, "never-uploaded.txt")
	s.Require().NoError(err)
	s.False(revoked)
}

// TestResolveAcrossUsers tests the scan over multiple user roots.
func (s *ShareTestSuite) TestResolveAcrossUsers() {
	bob := &models.User{ID: 2, Username: "bob", QuotaBytes: 1024 * 1024}
	_, err := s.store.SaveFile(bob, strings.NewReader("bob's file"), 10, "b.txt", "")
	s.Require().NoError(err)
	s.upload("a.txt")

	token, err := s.store.IssueShareToken(bob.ID, "b.txt")
	s.Require().NoError(err)

	userID, path, err := s.store.ResolveShareToken(token)
	s.Require().NoError(err)
	s.Equal(bob.ID, userID)
	s.Equal("b.txt", path)
}

// TestResolveEmptyToken tests that the empty token never matches.
func (s *ShareTestSuite) TestResolveEmptyToken() {
	s.upload("doc.txt")

	var notFound NotFoundError
	_, _, err := s.store.ResolveShareToken("")
	s.ErrorAs(err, &notFound)
}

func TestShareTestSuite(t *testing.T) {
	suite.Run(t, new(ShareTestSuite))
}
