package gear

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PermissionRegistry gates whether a bot may drive external calls against a
// credit account. The purchase engine itself never consults it; the serving
// layer checks it before accepting an execution request.
type PermissionRegistry interface {
	HasExternalCallPermission(bot, manager, account common.Address) (bool, error)
}

type permKey struct {
	bot, manager, account common.Address
}

// MemoryPermissions is an in-memory grant table keyed by the
// (bot, manager, account) triple.
type MemoryPermissions struct {
	mu     sync.RWMutex
	grants map[permKey]bool
}

func NewMemoryPermissions() *MemoryPermissions {
	return &MemoryPermissions{grants: make(map[permKey]bool)}
}

// Grant enables the external-call permission bit for the triple.
func (p *MemoryPermissions) Grant(bot, manager, account common.Address) {
	p.mu.Lock()
	p.grants[permKey{bot, manager, account}] = true
	p.mu.Unlock()
}

// Revoke clears the permission bit for the triple.
func (p *MemoryPermissions) Revoke(bot, manager, account common.Address) {
	p.mu.Lock()
	delete(p.grants, permKey{bot, manager, account})
	p.mu.Unlock()
}

func (p *MemoryPermissions) HasExternalCallPermission(bot, manager, account common.Address) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.grants[permKey{bot, manager, account}], nil
}

var _ PermissionRegistry = (*MemoryPermissions)(nil)

// AllowAllPermissions grants every triple. Devnet only.
type AllowAllPermissions struct{}

func (AllowAllPermissions) HasExternalCallPermission(bot, manager, account common.Address) (bool, error) {
	return true, nil
}

var _ PermissionRegistry = AllowAllPermissions{}
