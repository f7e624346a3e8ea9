package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/conversation"
	"github.com/chatlinehq/chatline/internal/identity"
	"github.com/chatlinehq/chatline/internal/instance"
	"github.com/chatlinehq/chatline/internal/message"
)

type fakeRegistry struct {
	inst instance.Instance
	err  error
}

func (f *fakeRegistry) GetByName(_ context.Context, _ string) (instance.Instance, error) {
	return f.inst, f.err
}

type fakeContacts struct{}

func (fakeContacts) ResolveContact(_ context.Context, tenantID, _, remoteJID, _ string) (identity.Contact, error) {
	return identity.Contact{ID: "contact-1", TenantID: tenantID, RemoteJID: remoteJID}, nil
}

type fakeRouter struct {
	conv conversation.Conversation
}

func (f *fakeRouter) Route(_ context.Context, _ conversation.Target) (conversation.Conversation, error) {
	return f.conv, nil
}

type fakeSender struct {
	externalID string
	err        error
	sent       int
}

func (f *fakeSender) SendText(_ context.Context, _, _, _ string) (string, error) {
	f.sent++
	return f.externalID, f.err
}

type fakeAppender struct {
	lastIn message.AppendInput
	count  int
}

func (f *fakeAppender) Append(_ context.Context, in message.AppendInput) (message.AppendOutcome, error) {
	f.count++
	f.lastIn = in
	return message.AppendOutcome{Message: message.Message{ID: "msg-1"}, WasNew: true}, nil
}

func connectedInstance() instance.Instance {
	return instance.Instance{
		ID:       "inst-1",
		TenantID: "tenant-1",
		Name:     "support-line",
		Status:   instance.StatusConnected,
	}
}

func newService(registry *fakeRegistry, sender *fakeSender, appender *fakeAppender) *Service {
	return NewService(nil, registry, fakeContacts{}, &fakeRouter{
		conv: conversation.Conversation{ID: "conv-1", Status: conversation.StatusOpen},
	}, sender, appender)
}

func TestSend_HappyPath(t *testing.T) {
	sender := &fakeSender{externalID: "WIRE-42"}
	appender := &fakeAppender{}
	svc := newService(&fakeRegistry{inst: connectedInstance()}, sender, appender)

	res, err := svc.Send(context.Background(), SendInput{
		InstanceName: "support-line",
		RemoteJID:    "5511999999999@s.whatsapp.net",
		Body:         "how can I help?",
		AgentID:      "agent-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "conv-1", res.Conversation.ID)
	assert.Equal(t, "WIRE-42", res.ExternalID)
	assert.Equal(t, message.DirectionOutbound, appender.lastIn.Direction)
	assert.Equal(t, "WIRE-42", appender.lastIn.ExternalID)
}

func TestSend_ProviderFailureStoresNothing(t *testing.T) {
	sender := &fakeSender{err: errors.New("gateway timeout")}
	appender := &fakeAppender{}
	svc := newService(&fakeRegistry{inst: connectedInstance()}, sender, appender)

	_, err := svc.Send(context.Background(), SendInput{
		InstanceName: "support-line",
		RemoteJID:    "x@s.whatsapp.net",
		Body:         "hi",
	})
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, 0, appender.count)
}

func TestSend_DisconnectedInstance(t *testing.T) {
	inst := connectedInstance()
	inst.Status = instance.StatusDisconnected
	svc := newService(&fakeRegistry{inst: inst}, &fakeSender{}, &fakeAppender{})

	_, err := svc.Send(context.Background(), SendInput{
		InstanceName: "support-line",
		RemoteJID:    "x@s.whatsapp.net",
		Body:         "hi",
	})
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestSend_UnknownInstance(t *testing.T) {
	svc := newService(&fakeRegistry{err: instance.ErrNotFound}, &fakeSender{}, &fakeAppender{})

	_, err := svc.Send(context.Background(), SendInput{
		InstanceName: "ghost",
		RemoteJID:    "x@s.whatsapp.net",
		Body:         "hi",
	})
	assert.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSend_EmptyBody(t *testing.T) {
	svc := newService(&fakeRegistry{inst: connectedInstance()}, &fakeSender{}, &fakeAppender{})

	_, err := svc.Send(context.Background(), SendInput{
		InstanceName: "support-line",
		RemoteJID:    "x@s.whatsapp.net",
		Body:         "   ",
	})
	assert.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSend_MissingProviderIDSynthesized(t *testing.T) {
	sender := &fakeSender{externalID: ""}
	appender := &fakeAppender{}
	svc := newService(&fakeRegistry{inst: connectedInstance()}, sender, appender)

	res, err := svc.Send(context.Background(), SendInput{
		InstanceName: "support-line",
		RemoteJID:    "x@s.whatsapp.net",
		Body:         "hi",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, res.ExternalID)
	assert.Equal(t, res.ExternalID, appender.lastIn.ExternalID)
}
