package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/savorly/savorly-api/internal/domain/directory"
	"github.com/savorly/savorly-api/internal/domain/entity"
	repo "github.com/savorly/savorly-api/internal/domain/repository"
	"github.com/savorly/savorly-api/pkg/helpers"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// IdentityService coordinates the user-record store and the credential
// directory. It owns no storage itself; its job is keeping the two stores
// consistent across multi-step mutations.
type IdentityService struct {
	Users        repo.UserRepository
	Directory    directory.CredentialDirectory
	Recipes      repo.RecipeCatalog
	Logger       *logrus.Logger
	GCS          *storage.Client
	GCSBucket    string
	ES           *elasticsearch.Client
	ESUsersIndex string
}

func NewIdentityService(users repo.UserRepository, dir directory.CredentialDirectory, recipes repo.RecipeCatalog, logger *logrus.Logger, gcs *storage.Client, gcsBucket string, es *elasticsearch.Client, esUsersIndex string) *IdentityService {
	return &IdentityService{
		Users:        users,
		Directory:    dir,
		Recipes:      recipes,
		Logger:       logger,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		ES:           es,
		ESUsersIndex: esUsersIndex,
	}
}

// CreateUserRequest carries the fields of a signup. Structural validation
// (non-empty, formats) happens at the binding layer before this is built.
type CreateUserRequest struct {
	UserName string
	Email    string
	Password string
}

// ChangePasswordRequest carries the confirmation pair for a password change.
type ChangePasswordRequest struct {
	NewPassword1 string
	NewPassword2 string
}

// UserProjection is the view-safe rendering of a User; it never carries the
// password.
type UserProjection struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileView is the profile page model: the projection plus the number of
// recipes the user owns.
type ProfileView struct {
	User        UserProjection `json:"user"`
	RecipeCount int64          `json:"recipe_count"`
}

func Project(u *entity.User) UserProjection {
	return UserProjection{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

// FindByName resolves a user by username. Absence is ErrUserNotFound.
func (s *IdentityService) FindByName(ctx context.Context, name string) (*entity.User, error) {
	u, err := s.Users.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by name %q: %w", name, err)
	}
	return u, nil
}

// FindByID resolves a user by id. Absence is ErrUserNotFound.
func (s *IdentityService) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by id %d: %w", id, err)
	}
	return u, nil
}

// ProfileByName assembles the profile view for a username. Either a full
// view or an error comes back, never both.
func (s *IdentityService) ProfileByName(ctx context.Context, name string) (*ProfileView, error) {
	u, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.assembleProfile(ctx, u)
}

// ProfileByID assembles the profile view for a user id.
func (s *IdentityService) ProfileByID(ctx context.Context, id int64) (*ProfileView, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.assembleProfile(ctx, u)
}

func (s *IdentityService) assembleProfile(ctx context.Context, u *entity.User) (*ProfileView, error) {
	count, err := s.Recipes.CountForUser(ctx, u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("recipe count failed")
		}
		return nil, fmt.Errorf("count recipes for user %d: %w", u.ID, err)
	}
	return &ProfileView{User: Project(u), RecipeCount: count}, nil
}

// CreateUser runs the signup flow across both stores:
//  1. check availability against the credential directory
//  2. persist the user record (id assigned by the store)
//  3. create the matching credential entry with role set {user}
//
// A partial failure after step 2 leaves a user row with no credential
// entry; usernameTaken detects that orphan on the next attempt for the
// same name and re-creates the entry from the stored record.
func (s *IdentityService) CreateUser(ctx context.Context, req CreateUserRequest) (*entity.User, error) {
	if s.usernameTaken(ctx, req.UserName) {
		return nil, ErrUsernameTaken
	}

	u := &entity.User{
		Name:     req.UserName,
		Email:    req.Email,
		Password: req.Password,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		s.logOp("create user", err, logrus.Fields{"user_name": req.UserName})
		return nil, fmt.Errorf("create user %q: %w", req.UserName, err)
	}

	if err := s.Directory.Create(ctx, u.Name, req.Password, []string{directory.RoleUser}); err != nil {
		// The user row stays; the next signup attempt for this name repairs
		// the missing entry.
		s.logOp("create credential", err, logrus.Fields{"user_id": u.ID, "user_name": u.Name})
		return nil, fmt.Errorf("create credential for %q: %w", u.Name, err)
	}

	s.indexUser(ctx, u)
	return u, nil
}

// ChangePassword replaces the credential for a user across both stores.
// Order matters: once the user record is saved the new value is
// authoritative, and the directory is reconciled to it even if the
// old-password authorization there no longer holds.
func (s *IdentityService) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) (*entity.User, error) {
	if req.NewPassword1 != req.NewPassword2 {
		return nil, ErrPasswordMismatch
	}

	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	previous := u.Password
	u.Password = req.NewPassword1
	if err := s.Users.Save(ctx, u); err != nil {
		s.logOp("save password", err, logrus.Fields{"user_id": u.ID, "user_name": u.Name})
		return nil, fmt.Errorf("save password for user %d: %w", userID, err)
	}

	if err := s.Directory.ChangePassword(ctx, u.Name, previous, req.NewPassword1); err != nil {
		if errors.Is(err, directory.ErrNotFound) || errors.Is(err, directory.ErrInvalidCredentials) {
			// Directory drifted from the user store; the record we just
			// saved is authoritative, so force the entry back in line.
			s.logOp("credential drift", err, logrus.Fields{"user_id": u.ID, "user_name": u.Name})
			err = s.Directory.Rewrite(ctx, u.Name, req.NewPassword1, []string{directory.RoleUser})
		}
		if err != nil {
			s.logOp("change credential", err, logrus.Fields{"user_id": u.ID, "user_name": u.Name})
			return nil, fmt.Errorf("change credential for %q: %w", u.Name, err)
		}
	}

	return u, nil
}

// Authenticate validates a login attempt against the credential directory
// and resolves the matching user record.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	if _, err := s.Directory.Verify(ctx, username, password); err != nil {
		return nil, err
	}
	u, err := s.FindByName(ctx, username)
	if err != nil {
		// A verified credential with no user record is the orphan case in
		// reverse; surface it as invalid rather than leaking store state.
		s.logOp("authenticate", err, logrus.Fields{"user_name": username})
		return nil, directory.ErrInvalidCredentials
	}
	return u, nil
}

// usernameTaken reports whether a signup for name must be rejected. Only
// the directory's distinct not-found means available; any other failure is
// treated as taken, since rejecting a signup is recoverable and a colliding
// credential is not.
func (s *IdentityService) usernameTaken(ctx context.Context, name string) bool {
	_, err := s.Directory.LoadByUsername(ctx, name)
	if err == nil {
		return true
	}
	if !errors.Is(err, directory.ErrNotFound) {
		s.logOp("availability check", err, logrus.Fields{"user_name": name})
		return true
	}

	// No entry. If a user row exists under this name the previous signup
	// failed between the two stores; restore the entry and keep the name
	// reserved for its owner.
	orphan, uerr := s.Users.FindByName(ctx, name)
	if uerr == nil && orphan != nil {
		if cerr := s.Directory.Create(ctx, orphan.Name, orphan.Password, []string{directory.RoleUser}); cerr != nil {
			s.logOp("repair credential", cerr, logrus.Fields{"user_id": orphan.ID, "user_name": orphan.Name})
		}
		return true
	}
	return false
}

// UploadAvatar streams avatar content to object storage and saves the
// public URL on the user record.
func (s *IdentityService) UploadAvatar(ctx context.Context, userID int64, r io.Reader, filename, contentType string) (string, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("object storage not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", strconv.FormatInt(userID, 10), uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", fmt.Errorf("upload avatar for user %d: %w", userID, err)
	}
	u.AvatarURL = url
	if err := s.Users.Save(ctx, u); err != nil {
		return "", fmt.Errorf("save avatar for user %d: %w", userID, err)
	}
	s.indexUser(ctx, u)
	return url, nil
}

// indexUser pushes the public user document into Elasticsearch. Best
// effort: failures are logged and never change the operation outcome.
func (s *IdentityService) indexUser(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"avatar_url": u.AvatarURL,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: strconv.FormatInt(u.ID, 10), Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.logOp("es index", err, logrus.Fields{"user_id": u.ID})
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

// SearchUsers runs a multi_match query on name and email.
func (s *IdentityService) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"name^2", "email"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *IdentityService) logOp(op string, err error, fields logrus.Fields) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithError(err).WithFields(fields).Warn(op + " failed")
}
