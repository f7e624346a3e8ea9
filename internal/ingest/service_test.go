package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/conversation"
	"github.com/chatlinehq/chatline/internal/identity"
	"github.com/chatlinehq/chatline/internal/instance"
	"github.com/chatlinehq/chatline/internal/media"
	"github.com/chatlinehq/chatline/internal/message"
	"github.com/chatlinehq/chatline/internal/webhook"
)

var testInstance = instance.Instance{
	ID:       "inst-1",
	TenantID: "tenant-1",
	Name:     "support-line",
	Status:   instance.StatusConnected,
	APIKey:   "secret",
}

type fakeNormalizer struct {
	result webhook.Result
	err    error
}

func (f *fakeNormalizer) Normalize(_ context.Context, _ []byte) (webhook.Result, error) {
	return f.result, f.err
}

type fakeIdentities struct {
	resolved identity.Resolved
	lastIn   identity.ResolveInput
}

func (f *fakeIdentities) Resolve(_ context.Context, in identity.ResolveInput) (identity.Resolved, error) {
	f.lastIn = in
	return f.resolved, nil
}

type fakeRouter struct {
	conv       conversation.Conversation
	lastTarget conversation.Target
}

func (f *fakeRouter) Route(_ context.Context, target conversation.Target) (conversation.Conversation, error) {
	f.lastTarget = target
	return f.conv, nil
}

type fakeMedia struct {
	url    string
	called bool
}

func (f *fakeMedia) Resolve(_ context.Context, _ media.Input) string {
	f.called = true
	return f.url
}

type fakeAppender struct {
	outcome message.AppendOutcome
	lastIn  message.AppendInput
}

func (f *fakeAppender) Append(_ context.Context, in message.AppendInput) (message.AppendOutcome, error) {
	f.lastIn = in
	return f.outcome, nil
}

type fakeStatus struct {
	lastID, lastStatus string
}

func (f *fakeStatus) SetStatus(_ context.Context, id, status string) error {
	f.lastID = id
	f.lastStatus = status
	return nil
}

type fixture struct {
	svc        *Service
	normalizer *fakeNormalizer
	identities *fakeIdentities
	router     *fakeRouter
	media      *fakeMedia
	appender   *fakeAppender
	status     *fakeStatus
}

func newFixture(result webhook.Result) *fixture {
	f := &fixture{
		normalizer: &fakeNormalizer{result: result},
		identities: &fakeIdentities{resolved: identity.Resolved{
			Contact:    &identity.Contact{ID: "contact-1", Name: "Maria"},
			SenderName: "Maria",
		}},
		router:   &fakeRouter{conv: conversation.Conversation{ID: "conv-1", Status: conversation.StatusPending}},
		media:    &fakeMedia{},
		appender: &fakeAppender{outcome: message.AppendOutcome{Message: message.Message{ID: "msg-1"}, WasNew: true}},
		status:   &fakeStatus{},
	}
	f.svc = NewService(nil, f.normalizer, f.identities, f.router, f.media, f.appender, f.status)
	return f
}

func messageResult(env webhook.Envelope) webhook.Result {
	env.Instance = testInstance
	return webhook.Result{
		Kind:     webhook.ResultMessage,
		Event:    "messages.upsert",
		Instance: testInstance,
		Message:  env,
	}
}

func TestProcess_InboundText(t *testing.T) {
	sentAt := time.Unix(1726000000, 0).UTC()
	f := newFixture(messageResult(webhook.Envelope{
		TargetJID:  "5511999999999@s.whatsapp.net",
		SenderJID:  "5511999999999@s.whatsapp.net",
		PushName:   "Maria",
		ExternalID: "ABC",
		Kind:       webhook.KindText,
		Body:       "hello",
		Timestamp:  sentAt,
	}))

	out, err := f.svc.Process(context.Background(), []byte(`{}`), "secret")
	assert.NoError(t, err)
	assert.True(t, out.Handled)
	assert.False(t, out.Deduplicated)
	assert.Equal(t, "conv-1", out.ConversationID)
	assert.Equal(t, "msg-1", out.MessageID)

	assert.Equal(t, "tenant-1", f.router.lastTarget.TenantID)
	assert.Equal(t, "contact-1", f.router.lastTarget.ContactID)
	assert.Empty(t, f.router.lastTarget.GroupID)
	assert.Equal(t, message.DirectionInbound, f.appender.lastIn.Direction)
	assert.Equal(t, "Maria", f.appender.lastIn.SenderName)
	assert.Equal(t, sentAt, f.appender.lastIn.SentAt)
	assert.False(t, f.media.called)
}

func TestProcess_GroupRoutesToGroup(t *testing.T) {
	f := newFixture(messageResult(webhook.Envelope{
		TargetJID:  "12036304@g.us",
		SenderJID:  "5511888888888@s.whatsapp.net",
		IsGroup:    true,
		ExternalID: "G1",
		Kind:       webhook.KindText,
	}))
	f.identities.resolved = identity.Resolved{
		Group:      &identity.Group{ID: "group-1"},
		Member:     &identity.GroupMember{ID: "member-1"},
		SenderName: "Joana",
	}

	out, err := f.svc.Process(context.Background(), []byte(`{}`), "secret")
	assert.NoError(t, err)
	assert.True(t, out.Handled)
	assert.Equal(t, "group-1", f.router.lastTarget.GroupID)
	assert.Empty(t, f.router.lastTarget.ContactID)
	assert.True(t, f.identities.lastIn.IsGroup)
}

func TestProcess_MediaResolved(t *testing.T) {
	f := newFixture(messageResult(webhook.Envelope{
		TargetJID:  "5511999999999@s.whatsapp.net",
		ExternalID: "A1",
		Kind:       webhook.KindAudio,
		MediaURL:   "https://cdn.example.com/a.enc",
		MimeType:   "audio/ogg",
	}))
	f.media.url = "http://files.local/media/support-line/x.ogg"

	_, err := f.svc.Process(context.Background(), []byte(`{}`), "secret")
	assert.NoError(t, err)
	assert.True(t, f.media.called)
	assert.Equal(t, "http://files.local/media/support-line/x.ogg", f.appender.lastIn.MediaURL)
}

func TestProcess_BadAPIKey(t *testing.T) {
	f := newFixture(messageResult(webhook.Envelope{
		TargetJID:  "x@s.whatsapp.net",
		ExternalID: "A1",
		Kind:       webhook.KindText,
	}))

	_, err := f.svc.Process(context.Background(), []byte(`{}`), "wrong")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestProcess_ConnectionUpdate(t *testing.T) {
	f := newFixture(webhook.Result{
		Kind:     webhook.ResultConnection,
		Event:    "connection.update",
		Instance: testInstance,
		Connection: webhook.ConnectionUpdate{
			Instance: testInstance,
			Status:   instance.StatusDisconnected,
		},
	})

	out, err := f.svc.Process(context.Background(), []byte(`{}`), "secret")
	assert.NoError(t, err)
	assert.True(t, out.Handled)
	assert.Equal(t, "inst-1", f.status.lastID)
	assert.Equal(t, instance.StatusDisconnected, f.status.lastStatus)
}

func TestProcess_UnrecognizedAcknowledged(t *testing.T) {
	f := newFixture(webhook.Result{
		Kind:     webhook.ResultUnrecognized,
		Event:    "presence.update",
		Instance: testInstance,
	})

	out, err := f.svc.Process(context.Background(), []byte(`{}`), "secret")
	assert.NoError(t, err)
	assert.False(t, out.Handled)
}

func TestProcess_Deduplicated(t *testing.T) {
	f := newFixture(messageResult(webhook.Envelope{
		TargetJID:  "5511999999999@s.whatsapp.net",
		ExternalID: "DUP",
		Kind:       webhook.KindText,
	}))
	f.appender.outcome = message.AppendOutcome{WasNew: false}

	out, err := f.svc.Process(context.Background(), []byte(`{}`), "secret")
	assert.NoError(t, err)
	assert.True(t, out.Handled)
	assert.True(t, out.Deduplicated)
	assert.Empty(t, out.MessageID)
}

func TestProcess_FromMeIsOutbound(t *testing.T) {
	f := newFixture(messageResult(webhook.Envelope{
		TargetJID:  "5511999999999@s.whatsapp.net",
		FromMe:     true,
		ExternalID: "ME1",
		Kind:       webhook.KindText,
		Body:       "agent reply from phone",
	}))

	_, err := f.svc.Process(context.Background(), []byte(`{}`), "secret")
	assert.NoError(t, err)
	assert.Equal(t, message.DirectionOutbound, f.appender.lastIn.Direction)
}
