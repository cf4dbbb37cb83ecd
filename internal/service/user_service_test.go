package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiwilearn/internal/models"
	"kiwilearn/internal/testutil"
)

func TestProvisionCreatesUserOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewUserService(db, "", nil)
	ctx := context.Background()

	identity := &models.Identity{Subject: "auth0|abc", Email: "aroha@example.com", Name: "Aroha Ngata Smith", Role: models.RoleParent}
	user, err := svc.Provision(ctx, identity, "token")
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc", user.ID)
	assert.Equal(t, "Aroha", user.FirstName)
	assert.Equal(t, "Ngata Smith", user.LastName)
	assert.Equal(t, models.RoleParent, user.Role)

	again, err := svc.Provision(ctx, &models.Identity{Subject: "auth0|abc"}, "token")
	require.NoError(t, err)
	assert.Equal(t, "aroha@example.com", again.Email)

	profile, err := svc.Profile(ctx, "auth0|abc")
	require.NoError(t, err)
	assert.Equal(t, models.DifficultyMedium, profile.MathsDifficulty)

	_, err = svc.Profile(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProvisionFetchesUserInfo(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email": "kid@example.com", "given_name": "Mere", "family_name": "Tane", "picture": "https://img.example.com/mere.png"}`))
	}))
	defer srv.Close()

	db := testutil.NewTestDB(t)
	svc := NewUserService(db, srv.URL, srv.Client())

	user, err := svc.Provision(context.Background(), &models.Identity{Subject: "auth0|kid"}, "access-token")
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-token", gotAuth)
	assert.Equal(t, "kid@example.com", user.Email)
	assert.Equal(t, "Mere", user.FirstName)
	assert.Equal(t, "Tane", user.LastName)
	assert.Equal(t, models.RoleStudent, user.Role)
}

func TestProvisionToleratesUserInfoFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	db := testutil.NewTestDB(t)
	svc := NewUserService(db, srv.URL, srv.Client())

	user, err := svc.Provision(context.Background(), &models.Identity{Subject: "auth0|kid", Name: "Mere"}, "access-token")
	require.NoError(t, err)
	assert.Empty(t, user.Email)
	assert.Equal(t, "Mere", user.FirstName)
}

func TestProvisionWithTakenEmail(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.InsertUser(t, db, "legacy", "shared@example.com", models.RoleStudent, 0)
	svc := NewUserService(db, "", nil)

	user, err := svc.Provision(context.Background(), &models.Identity{Subject: "auth0|new", Email: "shared@example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, "auth0|new", user.ID)
	assert.Empty(t, user.Email)
}

func TestProvisionRefreshesChangedClaims(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewUserService(db, "", nil)
	ctx := context.Background()

	_, err := svc.Provision(ctx, &models.Identity{Subject: "auth0|abc", Email: "old@example.com", Name: "Aroha Ngata"}, "")
	require.NoError(t, err)

	user, err := svc.Provision(ctx, &models.Identity{Subject: "auth0|abc", Email: "new@example.com", Name: "Aroha Smith"}, "")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "Smith", user.LastName)

	stored, err := svc.Profile(ctx, "auth0|abc")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.Equal(t, "Aroha", stored.FirstName)
	assert.Equal(t, "Smith", stored.LastName)

	// Claims missing from a later token leave the stored profile alone.
	user, err = svc.Provision(ctx, &models.Identity{Subject: "auth0|abc"}, "")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "Smith", user.LastName)
}

func TestProvisionRefreshKeepsEmailTakenByAnotherAccount(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.InsertUser(t, db, "legacy", "shared@example.com", models.RoleStudent, 0)
	svc := NewUserService(db, "", nil)
	ctx := context.Background()

	_, err := svc.Provision(ctx, &models.Identity{Subject: "auth0|abc", Email: "mine@example.com", Name: "Mere"}, "")
	require.NoError(t, err)

	user, err := svc.Provision(ctx, &models.Identity{Subject: "auth0|abc", Email: "shared@example.com", Name: "Mere Tane"}, "")
	require.NoError(t, err)
	assert.Equal(t, "mine@example.com", user.Email)
	assert.Equal(t, "Tane", user.LastName)

	stored, err := svc.Profile(ctx, "auth0|abc")
	require.NoError(t, err)
	assert.Equal(t, "mine@example.com", stored.Email)
	assert.Equal(t, "Tane", stored.LastName)
}
