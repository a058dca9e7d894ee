package services

import (
	"context"
	"errors"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

const (
	MessageInvalidCredentials = "Invalid credentials"
	MessagePasswordMismatch   = "Passwords do not match"
	MessageNoResponse         = "No response from server"
	MessageUnexpectedError    = "Unexpected error occurred"
	MessageSignupSucceeded    = "Signup successful! Please login."
	MessageLoggedOut          = "Logged out"
)

// ErrPasswordMismatch is returned when the confirmation differs from the password
var ErrPasswordMismatch = errors.New("passwords do not match")

// Navigator is told where to go after an authentication step succeeds
type Navigator interface {
	// Authenticated runs after a successful login
	Authenticated(ctx context.Context, credential models.Credential)
	// SignedUp runs after a successful signup; the user must now log in
	SignedUp(ctx context.Context, username string)
}

// NavigatorFuncs adapts plain functions to Navigator. Nil fields are no-ops.
type NavigatorFuncs struct {
	OnAuthenticated func(ctx context.Context, credential models.Credential)
	OnSignedUp      func(ctx context.Context, username string)
}

func (n NavigatorFuncs) Authenticated(ctx context.Context, credential models.Credential) {
	if n.OnAuthenticated != nil {
		n.OnAuthenticated(ctx, credential)
	}
}

func (n NavigatorFuncs) SignedUp(ctx context.Context, username string) {
	if n.OnSignedUp != nil {
		n.OnSignedUp(ctx, username)
	}
}

// SignupForm is what the operator types into the signup screen
type SignupForm struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// AuthService runs the login, signup and logout flows. It is the only
// writer of the token store.
type AuthService struct {
	gateway       Gateway
	store         TokenStore
	navigator     Navigator
	notifications *NotificationCenter
	logger        *logrus.Entry
}

// NewAuthService creates the auth flows. A nil navigator does nothing.
func NewAuthService(gateway Gateway, store TokenStore, navigator Navigator, notifications *NotificationCenter) *AuthService {
	if navigator == nil {
		navigator = NavigatorFuncs{}
	}
	return &AuthService{
		gateway:       gateway,
		store:         store,
		navigator:     navigator,
		notifications: notifications,
		logger:        logrus.WithField("component", "AuthService"),
	}
}

// Login authenticates, persists the credential and navigates on. Any
// failure shows the same fixed message; the server detail is only logged.
func (s *AuthService) Login(ctx context.Context, username, password string) (models.Credential, error) {
	logger := s.logger.WithField("username", username)

	credential, err := s.gateway.Login(ctx, username, password)
	if err != nil {
		logger.WithError(err).Info("Login rejected")
		s.notifications.ShowError(MessageInvalidCredentials)
		return models.Credential{}, err
	}

	if err := s.store.Save(ctx, credential); err != nil {
		logger.WithError(err).Error("Failed to persist credential")
		s.notifications.ShowError(MessageUnexpectedError)
		return models.Credential{}, err
	}

	logger.Info("Logged in")
	s.navigator.Authenticated(ctx, credential)
	return credential, nil
}

// Signup registers an account after checking the password confirmation
func (s *AuthService) Signup(ctx context.Context, form SignupForm) error {
	logger := s.logger.WithField("username", form.Username)

	if form.Password != form.ConfirmPassword {
		s.notifications.ShowError(MessagePasswordMismatch)
		return shared.NewValidationError("signup", 0, shared.FieldErrors{
			"password": {MessagePasswordMismatch},
		})
	}

	err := s.gateway.Signup(ctx, models.SignupRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		s.notifications.ShowError(SignupErrorMessage(err))
		logger.WithError(err).Info("Signup failed")
		return err
	}

	logger.Info("Signed up")
	s.notifications.ShowSuccess(MessageSignupSucceeded)
	s.navigator.SignedUp(ctx, form.Username)
	return nil
}

// Logout revokes the refresh token when possible and always forgets the
// local credential
func (s *AuthService) Logout(ctx context.Context) error {
	credential, err := s.store.Load(ctx)
	if err != nil {
		// an unreadable credential cannot be revoked, but it can still be forgotten
		s.logger.WithError(err).Warn("Stored credential unreadable, skipping server-side logout")
		credential = models.Credential{}
	}

	if !credential.Empty() && credential.Refresh != "" {
		if err := s.gateway.Logout(ctx, credential.Refresh); err != nil {
			s.logger.WithError(err).Warn("Server-side logout failed, clearing local credential anyway")
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.notifications.ShowSuccess(MessageLoggedOut)
	return nil
}

// SignupErrorMessage turns a signup failure into the text shown to the operator
func SignupErrorMessage(err error) string {
	if fields, ok := shared.FieldErrorsOf(err); ok {
		if message := fields.Message(); message != "" {
			return message
		}
	}
	if shared.IsNetworkError(err) {
		return MessageNoResponse
	}
	return MessageUnexpectedError
}
