package identity

import (
	"context"
	"time"
)

// Contact is a known direct-message counterpart within a tenant.
type Contact struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	RemoteJID string    `json:"remote_jid"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group is a known group chat within a tenant.
type Group struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	RemoteJID string    `json:"remote_jid"`
	Subject   string    `json:"subject"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupMember records a sender seen inside a group.
type GroupMember struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	RemoteJID string    `json:"remote_jid"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolved is the identity outcome for one inbound message. Exactly one of
// Contact or Group is set.
type Resolved struct {
	Contact *Contact
	Group   *Group
	Member  *GroupMember

	SenderName      string
	SenderAvatarURL string
}

// Profile is directory data fetched from the channel provider.
type Profile struct {
	Name      string
	AvatarURL string
}

// ProfileLookup fetches directory data from the channel provider. Lookups
// are best effort; failures never block message processing.
type ProfileLookup interface {
	ContactProfile(ctx context.Context, instanceName, remoteJID string) (Profile, error)
	GroupProfile(ctx context.Context, instanceName, remoteJID string) (Profile, error)
}

// ResolveInput carries what identity resolution needs from a normalized
// inbound message.
type ResolveInput struct {
	TenantID     string
	InstanceName string
	TargetJID    string
	SenderJID    string
	IsGroup      bool
	PushName     string
}

// Store persists contacts, groups, and group members.
type Store interface {
	UpsertContact(ctx context.Context, tenantID, remoteJID, name, avatarURL string) (Contact, error)
	UpsertGroup(ctx context.Context, tenantID, remoteJID, subject, avatarURL string) (Group, error)
	UpsertGroupMember(ctx context.Context, groupID, remoteJID, name, avatarURL string) (GroupMember, error)
}
