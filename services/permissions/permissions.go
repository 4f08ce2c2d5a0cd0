package permissions

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"relaybot/core"
	"relaybot/db"
)

// Wildcard is the permission entry granting an identity every command
const Wildcard = "*"

// PermissionsService is the allow-list gate between identities and commands.
// State lives in memory for reads; every mutation is persisted synchronously
// through the repository before it returns (read-your-writes, the in-memory
// state is authoritative regardless of persistence completion).
type PermissionsService struct {
	mu      sync.RWMutex
	granted map[string]map[string]struct{}
	blocked map[string]struct{}

	ownerID         string
	permissionsRepo *db.SQLitePermissionsRepository
}

func NewPermissionsService(repo *db.SQLitePermissionsRepository, ownerID string) (*PermissionsService, error) {
	log.Printf("📋 Starting to load permission store")

	persisted, err := repo.GetAllPermissions()
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted permissions: %w", err)
	}

	granted := make(map[string]map[string]struct{}, len(persisted))
	for identity, commands := range persisted {
		set := make(map[string]struct{}, len(commands))
		for _, command := range commands {
			set[command] = struct{}{}
		}
		granted[identity] = set
	}

	blockedList, err := repo.GetBlockedIdentities()
	if err != nil {
		return nil, fmt.Errorf("failed to load blocked identities: %w", err)
	}
	blocked := make(map[string]struct{}, len(blockedList))
	for _, identity := range blockedList {
		blocked[identity] = struct{}{}
	}

	log.Printf("✅ Loaded permissions for %d identities, %d blocked", len(granted), len(blocked))
	return &PermissionsService{
		granted:         granted,
		blocked:         blocked,
		ownerID:         ownerID,
		permissionsRepo: repo,
	}, nil
}

// HasPermission reports whether the identity may run the command. The owner
// identity bypasses the gate for every command.
func (s *PermissionsService) HasPermission(identity, command string) bool {
	if identity == s.ownerID {
		return true
	}

	command = strings.ToLower(command)

	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.granted[identity]
	if !ok {
		return false
	}
	if _, ok := set[Wildcard]; ok {
		return true
	}
	_, ok = set[command]
	return ok
}

func (s *PermissionsService) Grant(ctx context.Context, identity, command string) error {
	log.Printf("📋 Starting to grant command %s to identity %s", command, identity)

	command = strings.ToLower(command)

	s.mu.Lock()
	set, ok := s.granted[identity]
	if !ok {
		set = make(map[string]struct{})
		s.granted[identity] = set
	}
	set[command] = struct{}{}
	s.mu.Unlock()

	if err := s.permissionsRepo.GrantCommand(identity, command); err != nil {
		return fmt.Errorf("failed to persist grant: %w", err)
	}

	log.Printf("✅ Granted command %s to identity %s", command, identity)
	return nil
}

// Revoke removes a grant. Revoking a grant that was never made returns
// core.ErrNotFound.
func (s *PermissionsService) Revoke(ctx context.Context, identity, command string) error {
	log.Printf("📋 Starting to revoke command %s from identity %s", command, identity)

	command = strings.ToLower(command)

	s.mu.Lock()
	set, ok := s.granted[identity]
	if ok {
		_, ok = set[command]
	}
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("no grant of %s for identity %s: %w", command, identity, core.ErrNotFound)
	}
	delete(set, command)
	if len(set) == 0 {
		delete(s.granted, identity)
	}
	s.mu.Unlock()

	// In-memory state is authoritative; a repo miss here is not an error
	if err := s.permissionsRepo.RevokeCommand(identity, command); err != nil && !core.IsNotFoundError(err) {
		return fmt.Errorf("failed to persist revoke: %w", err)
	}

	log.Printf("✅ Revoked command %s from identity %s", command, identity)
	return nil
}

func (s *PermissionsService) IsBlocked(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocked[identity]
	return ok
}

func (s *PermissionsService) Block(ctx context.Context, identity string) error {
	log.Printf("📋 Starting to block identity %s", identity)

	s.mu.Lock()
	s.blocked[identity] = struct{}{}
	s.mu.Unlock()

	if err := s.permissionsRepo.BlockIdentity(identity); err != nil {
		return fmt.Errorf("failed to persist block: %w", err)
	}

	log.Printf("✅ Blocked identity %s", identity)
	return nil
}

func (s *PermissionsService) Unblock(ctx context.Context, identity string) error {
	log.Printf("📋 Starting to unblock identity %s", identity)

	s.mu.Lock()
	delete(s.blocked, identity)
	s.mu.Unlock()

	if err := s.permissionsRepo.UnblockIdentity(identity); err != nil {
		return fmt.Errorf("failed to persist unblock: %w", err)
	}

	log.Printf("✅ Unblocked identity %s", identity)
	return nil
}
