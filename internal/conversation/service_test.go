package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatlinehq/chatline/internal/apperr"
)

type fakeStore struct {
	byID   map[string]Conversation
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]Conversation{}}
}

func (f *fakeStore) FindOrCreateActive(_ context.Context, target Target) (Conversation, bool, error) {
	for _, c := range f.byID {
		if c.Active() && c.TenantID == target.TenantID &&
			c.ContactID == target.ContactID && c.GroupID == target.GroupID {
			return c, false, nil
		}
	}
	f.nextID++
	conv := Conversation{
		ID:         string(rune('a' + f.nextID)),
		TenantID:   target.TenantID,
		InstanceID: target.InstanceID,
		ContactID:  target.ContactID,
		GroupID:    target.GroupID,
		Status:     StatusPending,
	}
	f.byID[conv.ID] = conv
	return conv, true, nil
}

func (f *fakeStore) Claim(_ context.Context, id, agentID string) (Conversation, bool, error) {
	conv, ok := f.byID[id]
	if !ok || !conv.Active() || conv.AssignedAgentID != "" {
		return Conversation{}, false, nil
	}
	conv.Status = StatusOpen
	conv.AssignedAgentID = agentID
	f.byID[id] = conv
	return conv, true, nil
}

func (f *fakeStore) Close(_ context.Context, id string) (Conversation, error) {
	conv, ok := f.byID[id]
	if !ok || !conv.Active() {
		return Conversation{}, ErrNotFound
	}
	conv.Status = StatusClosed
	f.byID[id] = conv
	return conv, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (Conversation, error) {
	conv, ok := f.byID[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (f *fakeStore) List(_ context.Context, filter ListFilter) ([]Conversation, error) {
	var out []Conversation
	for _, c := range f.byID {
		if c.TenantID == filter.TenantID && (filter.Status == "" || c.Status == filter.Status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestRoute_ReusesActiveConversation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(nil, store)
	target := Target{TenantID: "t1", InstanceID: "i1", ContactID: "c1"}

	first, err := svc.Route(context.Background(), target)
	assert.NoError(t, err)
	second, err := svc.Route(context.Background(), target)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRoute_NewConversationAfterClose(t *testing.T) {
	store := newFakeStore()
	svc := NewService(nil, store)
	target := Target{TenantID: "t1", InstanceID: "i1", ContactID: "c1"}

	first, err := svc.Route(context.Background(), target)
	assert.NoError(t, err)
	_, err = svc.Close(context.Background(), first.ID)
	assert.NoError(t, err)

	second, err := svc.Route(context.Background(), target)
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StatusPending, second.Status)
}

func TestClaim_FirstWinsSecondSeesWinner(t *testing.T) {
	store := newFakeStore()
	svc := NewService(nil, store)
	conv, err := svc.Route(context.Background(), Target{TenantID: "t1", InstanceID: "i1", ContactID: "c1"})
	assert.NoError(t, err)

	won1, ok1, err := svc.Claim(context.Background(), conv.ID, "agent-1")
	assert.NoError(t, err)
	assert.True(t, ok1)
	assert.Equal(t, "agent-1", won1.AssignedAgentID)
	assert.Equal(t, StatusOpen, won1.Status)

	lost, ok2, err := svc.Claim(context.Background(), conv.ID, "agent-2")
	assert.NoError(t, err)
	assert.False(t, ok2)
	assert.Equal(t, "agent-1", lost.AssignedAgentID)
}

func TestClaim_Idempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(nil, store)
	conv, err := svc.Route(context.Background(), Target{TenantID: "t1", InstanceID: "i1", ContactID: "c1"})
	assert.NoError(t, err)

	_, won, err := svc.Claim(context.Background(), conv.ID, "agent-1")
	assert.NoError(t, err)
	assert.True(t, won)

	again, won, err := svc.Claim(context.Background(), conv.ID, "agent-1")
	assert.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, "agent-1", again.AssignedAgentID)
}

func TestClaim_ClosedConversationNotFound(t *testing.T) {
	store := newFakeStore()
	svc := NewService(nil, store)
	conv, err := svc.Route(context.Background(), Target{TenantID: "t1", InstanceID: "i1", ContactID: "c1"})
	assert.NoError(t, err)
	_, err = svc.Close(context.Background(), conv.ID)
	assert.NoError(t, err)

	_, _, err = svc.Claim(context.Background(), conv.ID, "agent-1")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestClose_MissingConversation(t *testing.T) {
	svc := NewService(nil, newFakeStore())
	_, err := svc.Close(context.Background(), "missing")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	svc := NewService(nil, newFakeStore())
	_, err := svc.List(context.Background(), ListFilter{TenantID: "t1", Status: "archived"})
	assert.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
