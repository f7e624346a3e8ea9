package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultLookupTimeout = 5 * time.Second

// Service resolves inbound senders and targets to stored identities.
type Service struct {
	store         Store
	lookup        ProfileLookup
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// NewService creates an identity resolution service. lookup may be nil, in
// which case only push names are used.
func NewService(log *slog.Logger, store Store, lookup ProfileLookup, lookupTimeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	return &Service{
		store:         store,
		lookup:        lookup,
		lookupTimeout: lookupTimeout,
		logger:        log.With(slog.String("service", "identity")),
	}
}

// Resolve upserts the identities behind one inbound message: the contact for
// a direct chat, or the group plus the sending member for a group chat.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (Resolved, error) {
	if strings.TrimSpace(in.TargetJID) == "" {
		return Resolved{}, fmt.Errorf("target jid is required")
	}
	if in.IsGroup {
		return s.resolveGroup(ctx, in)
	}
	return s.resolveContact(ctx, in)
}

// ResolveContact upserts a direct-chat contact by jid. Used both for inbound
// messages and for agent-initiated sends, where no push name exists.
func (s *Service) ResolveContact(ctx context.Context, tenantID, instanceName, remoteJID, pushName string) (Contact, error) {
	profile := s.fetchProfile(ctx, instanceName, remoteJID, pushName, false)
	contact, err := s.store.UpsertContact(ctx, tenantID, remoteJID, profile.Name, profile.AvatarURL)
	if err != nil {
		return Contact{}, fmt.Errorf("upsert contact %s: %w", remoteJID, err)
	}
	return contact, nil
}

func (s *Service) resolveContact(ctx context.Context, in ResolveInput) (Resolved, error) {
	contact, err := s.ResolveContact(ctx, in.TenantID, in.InstanceName, in.TargetJID, in.PushName)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{
		Contact:         &contact,
		SenderName:      contact.Name,
		SenderAvatarURL: contact.AvatarURL,
	}, nil
}

func (s *Service) resolveGroup(ctx context.Context, in ResolveInput) (Resolved, error) {
	profile := s.fetchProfile(ctx, in.InstanceName, in.TargetJID, "", true)
	group, err := s.store.UpsertGroup(ctx, in.TenantID, in.TargetJID, profile.Name, profile.AvatarURL)
	if err != nil {
		return Resolved{}, fmt.Errorf("upsert group %s: %w", in.TargetJID, err)
	}

	res := Resolved{Group: &group}
	if strings.TrimSpace(in.SenderJID) != "" {
		senderProfile := s.fetchProfile(ctx, in.InstanceName, in.SenderJID, in.PushName, false)
		member, err := s.store.UpsertGroupMember(ctx, group.ID, in.SenderJID, senderProfile.Name, senderProfile.AvatarURL)
		if err != nil {
			return Resolved{}, fmt.Errorf("upsert group member %s: %w", in.SenderJID, err)
		}
		res.Member = &member
		res.SenderName = member.Name
		res.SenderAvatarURL = member.AvatarURL
	}
	return res, nil
}

// fetchProfile queries the provider directory under a bounded timeout and
// merges the result with the push name. Failures are logged and absorbed.
func (s *Service) fetchProfile(ctx context.Context, instanceName, remoteJID, pushName string, group bool) Profile {
	if s.lookup == nil {
		return mergeProfile(pushName, Profile{}, false)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	var (
		fetched Profile
		err     error
	)
	if group {
		fetched, err = s.lookup.GroupProfile(lookupCtx, instanceName, remoteJID)
	} else {
		fetched, err = s.lookup.ContactProfile(lookupCtx, instanceName, remoteJID)
	}
	if err != nil {
		s.logger.Debug("profile lookup failed",
			slog.String("remote_jid", remoteJID),
			slog.Bool("group", group),
			slog.String("error", err.Error()),
		)
		return mergeProfile(pushName, Profile{}, false)
	}
	return mergeProfile(pushName, fetched, true)
}
