package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
)

// rosterAPI keeps server-side account state so toggles can be observed
// through refetches only.
type rosterAPI struct {
	stubAuthAPI
	mu    sync.Mutex
	users map[string]*domain.User
	lists int
}

func newRosterAPI(users ...domain.User) *rosterAPI {
	api := &rosterAPI{users: map[string]*domain.User{}}
	for i := range users {
		u := users[i]
		api.users[u.Username] = &u
	}
	api.listFn = func(context.Context, string) ([]domain.User, error) {
		api.mu.Lock()
		defer api.mu.Unlock()
		api.lists++
		out := make([]domain.User, 0, len(api.users))
		for _, u := range api.users {
			out = append(out, *u)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
		return out, nil
	}
	api.toggleFn = func(_ context.Context, _ string, username string) (*ports.ToggleResult, error) {
		api.mu.Lock()
		defer api.mu.Unlock()
		u, ok := api.users[username]
		if !ok {
			return nil, httpError(domain.KindNotFound, 404, "User not found")
		}
		u.IsActive = !u.IsActive
		state := "disabled"
		if u.IsActive {
			state = "enabled"
		}
		return &ports.ToggleResult{Message: fmt.Sprintf("User '%s' %s successfully", username, state)}, nil
	}
	api.deleteFn = func(_ context.Context, _ string, username string) (string, error) {
		api.mu.Lock()
		defer api.mu.Unlock()
		if _, ok := api.users[username]; !ok {
			return "", httpError(domain.KindNotFound, 404, "User not found")
		}
		delete(api.users, username)
		return fmt.Sprintf("User '%s' deleted successfully", username), nil
	}
	api.registerFn = func(_ context.Context, _ string, in domain.NewUser) (*domain.User, error) {
		api.mu.Lock()
		defer api.mu.Unlock()
		u := &domain.User{ID: in.Username, Username: in.Username, Email: in.Email, Role: in.Role, IsActive: true}
		api.users[in.Username] = u
		return u, nil
	}
	return api
}

func TestAdminRoster_ToggleTwiceRoundTrips(t *testing.T) {
	session, _ := newSession(t, domain.RoleAdmin)
	api := newRosterAPI(domain.User{Username: "bob", Role: domain.RoleUser, IsActive: true})
	roster := NewAdminRoster(newGateway(&api.stubAuthAPI, session))
	ctx := context.Background()

	if _, err := roster.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before, _ := roster.Find("bob")

	msg, err := roster.ToggleActive(ctx, "bob")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if msg != "User 'bob' disabled successfully" {
		t.Fatalf("unexpected message %q", msg)
	}
	mid, _ := roster.Find("bob")
	if mid.IsActive == before.IsActive {
		t.Fatalf("expected flag flipped after first toggle")
	}

	if _, err := roster.ToggleActive(ctx, "bob"); err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	after, _ := roster.Find("bob")
	if after.IsActive != before.IsActive {
		t.Fatalf("expected flag restored after two toggles")
	}
	if api.lists != 3 {
		t.Fatalf("expected a refetch after every toggle, got %d listings", api.lists)
	}
}

func TestAdminRoster_MutationsRefetch(t *testing.T) {
	session, _ := newSession(t, domain.RoleAdmin)
	api := newRosterAPI(domain.User{Username: "bob", Role: domain.RoleUser, IsActive: true})
	roster := NewAdminRoster(newGateway(&api.stubAuthAPI, session))
	ctx := context.Background()

	if _, err := roster.Create(ctx, domain.NewUser{Username: "carol", Email: "carol@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := roster.Find("carol"); !ok {
		t.Fatalf("expected carol in refreshed roster")
	}

	if _, err := roster.Delete(ctx, "bob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := roster.Find("bob"); ok {
		t.Fatalf("expected bob gone after refetch")
	}
	if got := len(roster.Users()); got != 1 {
		t.Fatalf("expected 1 user, got %d", got)
	}
}

func TestAdminRoster_FailedMutationKeepsCache(t *testing.T) {
	session, _ := newSession(t, domain.RoleAdmin)
	api := newRosterAPI(domain.User{Username: "bob", IsActive: true})
	roster := NewAdminRoster(newGateway(&api.stubAuthAPI, session))
	ctx := context.Background()
	_, _ = roster.Refresh(ctx)

	if _, err := roster.ToggleActive(ctx, "ghost"); err == nil {
		t.Fatalf("expected not found")
	}
	if api.lists != 1 {
		t.Fatalf("failed mutation must not refetch, got %d listings", api.lists)
	}
	if len(roster.Users()) != 1 {
		t.Fatalf("cache must be untouched")
	}
}
