package remotetest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// account is a stored user. Timestamps are kept naive-UTC on the wire like
// the real service emits them.
type account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	IsLoggedIn   bool
	LastActivity *time.Time
	CreatedAt    time.Time
}

type userStore struct {
	mu     sync.Mutex
	seq    int
	byName map[string]account
}

func newUserStore() *userStore {
	return &userStore{byName: make(map[string]account)}
}

func (s *userStore) get(username string) (account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byName[username]
	return a, ok
}

func (s *userStore) put(a account) {
	s.mu.Lock()
	s.byName[a.Username] = a
	s.mu.Unlock()
}

// update applies fn to the stored account under the lock.
func (s *userStore) update(username string, fn func(*account)) (account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byName[username]
	if !ok {
		return account{}, false
	}
	fn(&a)
	s.byName[username] = a
	return a, true
}

func (s *userStore) delete(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[username]; !ok {
		return false
	}
	delete(s.byName, username)
	return true
}

func (s *userStore) emailTaken(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byName {
		if a.Email == email {
			return true
		}
	}
	return false
}

func (s *userStore) nextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%024x", s.seq)
}

// list returns all accounts ordered by creation.
func (s *userStore) list() []account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]account, 0, len(s.byName))
	for _, a := range s.byName {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddUser seeds an active account.
func (s *Server) AddUser(username, email, password, role string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic("remotetest: hash password: " + err.Error())
	}
	s.users.put(account{
		ID:           s.users.nextID(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	})
}

// MarkLoggedIn simulates a live session on another device.
func (s *Server) MarkLoggedIn(username string) {
	now := s.now().UTC()
	s.users.update(username, func(a *account) {
		a.IsLoggedIn = true
		a.LastActivity = &now
	})
}

// SetActive enables or disables an account directly.
func (s *Server) SetActive(username string, active bool) {
	s.users.update(username, func(a *account) { a.IsActive = active })
}

// UserExists reports whether username is stored.
func (s *Server) UserExists(username string) bool {
	_, ok := s.users.get(username)
	return ok
}

// LoggedIn reports the server-side session flag for username.
func (s *Server) LoggedIn(username string) bool {
	a, ok := s.users.get(username)
	return ok && s.sessionActive(a)
}

func (s *Server) sessionActive(a account) bool {
	if !a.IsLoggedIn || a.LastActivity == nil {
		return false
	}
	return s.now().UTC().Before(a.LastActivity.Add(sessionTimeout))
}
