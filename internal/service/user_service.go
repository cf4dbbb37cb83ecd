package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"kiwilearn/internal/database"
	"kiwilearn/internal/models"
	"kiwilearn/internal/repository"
)

type userInfo struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// UserService provisions and loads user accounts
type UserService struct {
	db          *database.DB
	users       *repository.UserRepository
	userInfoURL string
	httpClient  *http.Client
}

// NewUserService creates a new user service. userInfoURL may be empty, in
// which case new users without an email claim are created without one.
func NewUserService(db *database.DB, userInfoURL string, httpClient *http.Client) *UserService {
	return &UserService{
		db:          db,
		users:       repository.NewUserRepository(db),
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
	}
}

// Provision returns the user for the verified identity, creating the account
// on first sight. Returning users get email and name refreshed from the
// identity's claims. accessToken is an optional OAuth access token, used to
// query the identity provider's userinfo endpoint when a new user's ID token
// carries no email.
func (s *UserService) Provision(ctx context.Context, identity *models.Identity, accessToken string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.refreshProfile(ctx, user, identity)
	}

	user = &models.User{
		ID:    identity.Subject,
		Email: identity.Email,
		Role:  identity.Role,
	}
	user.FirstName, user.LastName = splitName(identity.Name)

	if user.Email == "" && s.userInfoURL != "" && accessToken != "" {
		info, err := s.fetchUserInfo(ctx, accessToken)
		if err != nil {
			log.Warn().Err(err).Str("user_id", identity.Subject).Msg("Failed to fetch user info")
		} else {
			user.Email = info.Email
			user.ProfileImageURL = info.Picture
			if info.GivenName != "" || info.FamilyName != "" {
				user.FirstName, user.LastName = info.GivenName, info.FamilyName
			} else if user.FirstName == "" {
				user.FirstName, user.LastName = splitName(info.Name)
			}
		}
	}
	if !user.Role.Valid() {
		user.Role = models.RoleStudent
	}

	err = s.users.CreateUser(ctx, user)
	if err != nil && s.db.GetDialect().IsUniqueViolation(err) {
		// Another request provisioned the same subject first.
		existing, getErr := s.users.GetUserByID(ctx, identity.Subject)
		if getErr != nil {
			return nil, getErr
		}
		if existing != nil {
			return existing, nil
		}

		// The email belongs to a different account; keep the new one without it.
		log.Warn().Str("user_id", identity.Subject).Msg("Email already registered to another account")
		user.Email = ""
		err = s.users.CreateUser(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("Provisioned new user")
	return user, nil
}

// refreshProfile stores claims that changed at the identity provider. Empty
// claims never overwrite stored values.
func (s *UserService) refreshProfile(ctx context.Context, user *models.User, identity *models.Identity) (*models.User, error) {
	updated := *user
	if identity.Email != "" && !strings.EqualFold(identity.Email, user.Email) {
		updated.Email = identity.Email
	}
	if identity.Name != "" {
		updated.FirstName, updated.LastName = splitName(identity.Name)
	}
	if updated.Email == user.Email && updated.FirstName == user.FirstName && updated.LastName == user.LastName {
		return user, nil
	}

	err := s.users.UpdateProfile(ctx, &updated)
	if err != nil && updated.Email != user.Email && s.db.GetDialect().IsUniqueViolation(err) {
		log.Warn().Str("user_id", user.ID).Msg("Email already registered to another account")
		updated.Email = user.Email
		if updated.FirstName == user.FirstName && updated.LastName == user.LastName {
			return user, nil
		}
		err = s.users.UpdateProfile(ctx, &updated)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("user_id", user.ID).Msg("Refreshed user profile")
	return &updated, nil
}

// Profile returns the user's account
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) fetchUserInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info endpoint returned %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return &info, nil
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
