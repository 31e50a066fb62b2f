package application

import (
	"context"
	"errors"
	"testing"

	"github.com/savorly/savorly-api/internal/domain/directory"
	"github.com/savorly/savorly-api/internal/domain/entity"
	repo "github.com/savorly/savorly-api/internal/domain/repository"
)

type fakeUserRepo struct {
	nextID    int64
	users     map[int64]entity.User
	createErr error
	saveErr   error
	findErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int64]entity.User{}}
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (f *fakeUserRepo) FindByName(ctx context.Context, name string) (*entity.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, u := range f.users {
		if u.Name == name {
			cp := u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, u *entity.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = f.nextID
	f.nextID++
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUserRepo) Save(ctx context.Context, u *entity.User) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.users[u.ID]; !ok {
		return repo.ErrNotFound
	}
	f.users[u.ID] = *u
	return nil
}

type fakeEntry struct {
	password string
	roles    []string
}

type fakeDirectory struct {
	entries    map[string]fakeEntry
	loadErr    error
	createErr  error
	changeErr  error
	rewriteErr error

	changeCalls  int
	rewriteCalls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{entries: map[string]fakeEntry{}}
}

func (f *fakeDirectory) LoadByUsername(ctx context.Context, username string) (*directory.Entry, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	e, ok := f.entries[username]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &directory.Entry{Username: username, Roles: e.roles}, nil
}

func (f *fakeDirectory) Create(ctx context.Context, username, password string, roles []string) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.entries[username]; ok {
		return directory.ErrExists
	}
	f.entries[username] = fakeEntry{password: password, roles: roles}
	return nil
}

func (f *fakeDirectory) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	f.changeCalls++
	if f.changeErr != nil {
		return f.changeErr
	}
	e, ok := f.entries[username]
	if !ok {
		return directory.ErrNotFound
	}
	if e.password != oldPassword {
		return directory.ErrInvalidCredentials
	}
	e.password = newPassword
	f.entries[username] = e
	return nil
}

func (f *fakeDirectory) Rewrite(ctx context.Context, username, password string, roles []string) error {
	f.rewriteCalls++
	if f.rewriteErr != nil {
		return f.rewriteErr
	}
	f.entries[username] = fakeEntry{password: password, roles: roles}
	return nil
}

func (f *fakeDirectory) Verify(ctx context.Context, username, password string) (*directory.Entry, error) {
	e, ok := f.entries[username]
	if !ok {
		return nil, directory.ErrNotFound
	}
	if e.password != password {
		return nil, directory.ErrInvalidCredentials
	}
	return &directory.Entry{Username: username, Roles: e.roles}, nil
}

type fakeCatalog struct {
	counts map[int64]int64
	err    error
}

func (f *fakeCatalog) CountForUser(ctx context.Context, userID int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[userID], nil
}

func newService(users *fakeUserRepo, dir *fakeDirectory, recipes *fakeCatalog) *IdentityService {
	if recipes == nil {
		recipes = &fakeCatalog{counts: map[int64]int64{}}
	}
	return &IdentityService{Users: users, Directory: dir, Recipes: recipes}
}

func TestCreateUserSuccess(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)

	u, err := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "alice", Email: "alice@example.com", Password: "pw1"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected assigned id")
	}

	found, err := svc.FindByName(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if found.Name != "alice" || found.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", found)
	}

	e, ok := dir.entries["alice"]
	if !ok {
		t.Fatal("expected credential entry for alice")
	}
	if len(e.roles) != 1 || e.roles[0] != directory.RoleUser {
		t.Fatalf("expected role set {user}, got %v", e.roles)
	}
}

func TestCreateUserUsernameTaken(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	dir.entries["alice"] = fakeEntry{password: "pw1", roles: []string{directory.RoleUser}}
	svc := newService(users, dir, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "alice", Email: "other@example.com", Password: "x"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if len(users.users) != 0 {
		t.Fatalf("expected no user persisted, got %d", len(users.users))
	}
}

func TestCreateUserDirectoryUnreachableRejects(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	dir.loadErr = errors.New("directory down")
	svc := newService(users, dir, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "bob", Email: "bob@example.com", Password: "pw"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected conservative ErrUsernameTaken, got %v", err)
	}
	if len(users.users) != 0 {
		t.Fatal("expected no user persisted while directory unreachable")
	}
}

func TestCreateUserCredentialFailureLeavesRepairableOrphan(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	dir.createErr = errors.New("directory write failed")
	svc := newService(users, dir, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "carol", Email: "carol@example.com", Password: "pw"})
	if err == nil || errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected generic failure, got %v", err)
	}
	if len(users.users) != 1 {
		t.Fatalf("expected orphaned user row, got %d rows", len(users.users))
	}

	// Next attempt for the same name repairs the entry and rejects.
	dir.createErr = nil
	_, err = svc.CreateUser(context.Background(), CreateUserRequest{UserName: "carol", Email: "imposter@example.com", Password: "other"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken on retry, got %v", err)
	}
	e, ok := dir.entries["carol"]
	if !ok {
		t.Fatal("expected repaired credential entry")
	}
	if e.password != "pw" {
		t.Fatalf("repaired entry should carry the stored password, got %q", e.password)
	}
	if len(users.users) != 1 {
		t.Fatalf("repair must not add user rows, got %d", len(users.users))
	}
}

func TestChangePasswordMismatch(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)
	u, _ := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "dave", Email: "d@example.com", Password: "pw1"})

	_, err := svc.ChangePassword(context.Background(), u.ID, ChangePasswordRequest{NewPassword1: "pw3", NewPassword2: "pw4"})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	stored, _ := svc.FindByID(context.Background(), u.ID)
	if stored.Password != "pw1" {
		t.Fatalf("password must be unchanged, got %q", stored.Password)
	}
	if dir.changeCalls != 0 {
		t.Fatal("directory must not be touched on mismatch")
	}
}

func TestChangePasswordUserNotFound(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)

	_, err := svc.ChangePassword(context.Background(), 42, ChangePasswordRequest{NewPassword1: "pw", NewPassword2: "pw"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if dir.changeCalls != 0 || dir.rewriteCalls != 0 {
		t.Fatal("no store may be mutated for a missing user")
	}
}

func TestChangePasswordSuccess(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)
	u, _ := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "erin", Email: "e@example.com", Password: "old"})

	updated, err := svc.ChangePassword(context.Background(), u.ID, ChangePasswordRequest{NewPassword1: "new", NewPassword2: "new"})
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if updated.Password != "new" {
		t.Fatalf("expected returned user with new password, got %q", updated.Password)
	}
	stored, _ := svc.FindByID(context.Background(), u.ID)
	if stored.Password != "new" {
		t.Fatalf("expected stored password %q, got %q", "new", stored.Password)
	}
	if dir.entries["erin"].password != "new" {
		t.Fatalf("directory must hold the new credential, got %q", dir.entries["erin"].password)
	}
}

func TestChangePasswordRewritesDriftedDirectory(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)
	u, _ := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "frank", Email: "f@example.com", Password: "pw1"})

	// Simulate drift: the directory holds a value the user store never saw.
	dir.entries["frank"] = fakeEntry{password: "stale", roles: []string{directory.RoleUser}}

	_, err := svc.ChangePassword(context.Background(), u.ID, ChangePasswordRequest{NewPassword1: "pw2", NewPassword2: "pw2"})
	if err != nil {
		t.Fatalf("change password with drift: %v", err)
	}
	if dir.rewriteCalls != 1 {
		t.Fatalf("expected one rewrite, got %d", dir.rewriteCalls)
	}
	if dir.entries["frank"].password != "pw2" {
		t.Fatalf("directory must be reconciled to %q, got %q", "pw2", dir.entries["frank"].password)
	}
}

func TestChangePasswordDirectoryFailureSurfaces(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)
	u, _ := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "gail", Email: "g@example.com", Password: "pw1"})

	dir.changeErr = errors.New("directory down")
	_, err := svc.ChangePassword(context.Background(), u.ID, ChangePasswordRequest{NewPassword1: "pw2", NewPassword2: "pw2"})
	if err == nil {
		t.Fatal("expected failure when directory is down")
	}
	// The user store committed first and stays authoritative.
	stored, _ := svc.FindByID(context.Background(), u.ID)
	if stored.Password != "pw2" {
		t.Fatalf("user store keeps the new value, got %q", stored.Password)
	}
}

func TestFindByNameIdempotent(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)
	_, _ = svc.CreateUser(context.Background(), CreateUserRequest{UserName: "henry", Email: "h@example.com", Password: "pw"})

	a, err := svc.FindByName(context.Background(), "henry")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	b, err := svc.FindByName(context.Background(), "henry")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if *a != *b {
		t.Fatalf("lookups differ: %+v vs %+v", a, b)
	}
}

func TestProfileIncludesRecipeCount(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	recipes := &fakeCatalog{counts: map[int64]int64{}}
	svc := newService(users, dir, recipes)
	u, _ := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "iris", Email: "i@example.com", Password: "pw"})
	recipes.counts[u.ID] = 7

	view, err := svc.ProfileByName(context.Background(), "iris")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if view.RecipeCount != 7 {
		t.Fatalf("expected 7 recipes, got %d", view.RecipeCount)
	}
	if view.User.ID != u.ID || view.User.Name != "iris" {
		t.Fatalf("unexpected projection %+v", view.User)
	}
}

func TestProfileMissingUser(t *testing.T) {
	svc := newService(newFakeUserRepo(), newFakeDirectory(), nil)
	view, err := svc.ProfileByID(context.Background(), 99)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if view != nil {
		t.Fatal("exactly one of profile or error may be present")
	}
}

func TestProfileCatalogFailureDegrades(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	recipes := &fakeCatalog{err: errors.New("catalog down")}
	svc := newService(users, dir, recipes)
	u, _ := svc.CreateUser(context.Background(), CreateUserRequest{UserName: "jack", Email: "j@example.com", Password: "pw"})

	view, err := svc.ProfileByID(context.Background(), u.ID)
	if err == nil {
		t.Fatal("expected error when catalog fails")
	}
	if view != nil {
		t.Fatal("no partial profile on downstream failure")
	}
}

func TestAccountLifecycleScenario(t *testing.T) {
	users := newFakeUserRepo()
	dir := newFakeDirectory()
	svc := newService(users, dir, nil)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, CreateUserRequest{UserName: "alice", Email: "alice@example.com", Password: "pw1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.ID != 1 {
		t.Fatalf("expected id 1, got %d", u.ID)
	}

	if _, err := svc.CreateUser(ctx, CreateUserRequest{UserName: "alice", Email: "whatever@example.com", Password: "zzz"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	if _, err := svc.ChangePassword(ctx, 1, ChangePasswordRequest{NewPassword1: "pw2", NewPassword2: "pw2"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	stored, _ := svc.FindByID(ctx, 1)
	if stored.Password != "pw2" {
		t.Fatalf("expected pw2, got %q", stored.Password)
	}

	if _, err := svc.ChangePassword(ctx, 1, ChangePasswordRequest{NewPassword1: "pw3", NewPassword2: "pw4"}); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	stored, _ = svc.FindByID(ctx, 1)
	if stored.Password != "pw2" {
		t.Fatalf("password must remain pw2, got %q", stored.Password)
	}
}
