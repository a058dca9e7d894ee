package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/google/uuid"
)

// Response details, worded as the Django REST backend words them
const (
	detailUserExists      = "A user with that username already exists."
	detailBadCredentials  = "Invalid credentials"
	detailInvalidToken    = "Invalid token."
	detailTokenNotAllowed = "Given token not valid for any token type"
	detailNoCredentials   = "Authentication credentials were not provided."
	detailInvalidPage     = "Invalid page."
	detailNotFound        = "Not found."
	detailRequired        = "This field is required."
)

var (
	errBadCredentials  = errors.New("invalid credentials")
	errInvalidToken    = errors.New("invalid token")
	errTokenNotAllowed = errors.New("token not valid")
)

type userRecord struct {
	user         models.AuthUser
	salt         string
	passwordHash string
}

type session struct {
	username string
	refresh  string
}

// UserRegistry holds accounts and issued tokens in memory. Tokens are
// opaque random ids, not JWTs; the client never inspects them.
type UserRegistry struct {
	mutex       sync.RWMutex
	users       map[string]*userRecord
	access      map[string]session
	refresh     map[string]string
	blacklisted map[string]struct{}
	nextID      int64
}

// NewUserRegistry creates an empty registry
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{
		users:       make(map[string]*userRecord),
		access:      make(map[string]session),
		refresh:     make(map[string]string),
		blacklisted: make(map[string]struct{}),
		nextID:      1,
	}
}

// Register validates and stores a new account, returning field errors the
// way the signup endpoint reports them
func (r *UserRegistry) Register(request models.SignupRequest) (models.AuthUser, map[string][]string) {
	fields := make(map[string][]string)
	username := strings.TrimSpace(request.Username)
	if username == "" {
		fields["username"] = append(fields["username"], detailRequired)
	}
	if request.Password == "" {
		fields["password"] = append(fields["password"], detailRequired)
	} else if len(request.Password) < 8 {
		fields["password"] = append(fields["password"], "Ensure this field has at least 8 characters.")
	}
	if request.Email != "" {
		if _, err := mail.ParseAddress(request.Email); err != nil {
			fields["email"] = append(fields["email"], "Enter a valid email address.")
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[username]; exists && username != "" {
		fields["username"] = append(fields["username"], detailUserExists)
	}
	if len(fields) > 0 {
		return models.AuthUser{}, fields
	}

	salt := uuid.NewString()
	record := &userRecord{
		user:         models.AuthUser{ID: r.nextID, Username: username, Email: request.Email},
		salt:         salt,
		passwordHash: hashPassword(salt, request.Password),
	}
	r.nextID++
	r.users[username] = record
	return record.user, nil
}

// Authenticate checks a password and issues a token pair
func (r *UserRegistry) Authenticate(username, password string) (models.LoginResponse, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, ok := r.users[username]
	if !ok {
		return models.LoginResponse{}, errBadCredentials
	}
	expected := []byte(record.passwordHash)
	actual := []byte(hashPassword(record.salt, password))
	if subtle.ConstantTimeCompare(expected, actual) != 1 {
		return models.LoginResponse{}, errBadCredentials
	}

	access, refresh := uuid.NewString(), uuid.NewString()
	r.access[access] = session{username: username, refresh: refresh}
	r.refresh[refresh] = username
	return models.LoginResponse{Access: access, Refresh: refresh, User: record.user}, nil
}

// Lookup resolves an access token to its user
func (r *UserRegistry) Lookup(access string) (models.AuthUser, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	current, ok := r.access[access]
	if !ok {
		return models.AuthUser{}, errTokenNotAllowed
	}
	if _, revoked := r.blacklisted[current.refresh]; revoked {
		return models.AuthUser{}, errTokenNotAllowed
	}
	return r.users[current.username].user, nil
}

// Blacklist revokes a refresh token together with the access tokens issued with it
func (r *UserRegistry) Blacklist(refresh string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.refresh[refresh]; !ok {
		return errInvalidToken
	}
	if _, revoked := r.blacklisted[refresh]; revoked {
		return errInvalidToken
	}
	r.blacklisted[refresh] = struct{}{}
	return nil
}

func hashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return hex.EncodeToString(sum[:])
}
