/*
Package identity models users of the reporting system and the capability
gate derived from their role.

PURPOSE:
  The reporting core does not own user management - an external identity
  provider does. This package is the projection of that provider the core
  needs: who a user is, what role they hold, who their manager is, and
  what they are allowed to see and review.

ROLE MODEL:
  Instead of one mutable record with a role column and conditional
  validation ("manager must be null unless role is EMPLOYEE"), each role
  is its own type:

    Employee - has a ManagerID
    Manager  - has a team, never a manager of their own
    Admin    - unrestricted

  The invariant holds by construction: only Employee carries a manager
  reference, so there is nothing to validate at runtime.

CAPABILITY GATE:
  Role            View                    Review
  EMPLOYEE        own reports only        never
  MANAGER         direct reports' only    direct reports' only
  ADMIN           everything              everything

  Violations return ErrForbidden. The gate never silently narrows a
  request to what the caller may see - out-of-scope access is an error.

SEE ALSO:
  - lifecycle/engine.go: enforces CanReviewReport inside Review
  - store/sqlite: Directory implementation over the users table
*/
package identity

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// ROLES AND VARIANTS
// =============================================================================

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// Identity is the common surface of the three role variants.
type Identity interface {
	UserID() string
	Role() Role
	IsActive() bool
	DisplayName() string
}

// Employee is a report-submitting user with a direct manager.
type Employee struct {
	ID        string
	ManagerID string
	Name      string
	Email     string
	Active    bool
}

func (e Employee) UserID() string      { return e.ID }
func (e Employee) Role() Role          { return RoleEmployee }
func (e Employee) IsActive() bool      { return e.Active }
func (e Employee) DisplayName() string { return e.Name }

// Manager reviews the reports of employees whose ManagerID points at them.
type Manager struct {
	ID     string
	Name   string
	Email  string
	Active bool
}

func (m Manager) UserID() string      { return m.ID }
func (m Manager) Role() Role          { return RoleManager }
func (m Manager) IsActive() bool      { return m.Active }
func (m Manager) DisplayName() string { return m.Name }

// Admin bypasses the manager-match constraint entirely.
type Admin struct {
	ID     string
	Name   string
	Email  string
	Active bool
}

func (a Admin) UserID() string      { return a.ID }
func (a Admin) Role() Role          { return RoleAdmin }
func (a Admin) IsActive() bool      { return a.Active }
func (a Admin) DisplayName() string { return a.Name }

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrForbidden is returned for any role/ownership mismatch.
	ErrForbidden = errors.New("forbidden")

	// ErrUnknownUser is returned when a Directory lookup finds nothing.
	ErrUnknownUser = errors.New("unknown user")
)

// =============================================================================
// CAPABILITY GATE
// =============================================================================

// CanViewReport checks whether actor may view a report owned by ownerID,
// whose direct manager is ownerManagerID.
func CanViewReport(actor Identity, ownerID, ownerManagerID string) error {
	switch a := actor.(type) {
	case Employee:
		if a.ID == ownerID {
			return nil
		}
		return fmt.Errorf("employee %s may only view own reports: %w", a.ID, ErrForbidden)
	case Manager:
		if a.ID == ownerManagerID {
			return nil
		}
		return fmt.Errorf("manager %s is not the owner's manager: %w", a.ID, ErrForbidden)
	case Admin:
		return nil
	default:
		return ErrForbidden
	}
}

// CanReviewReport checks whether actor may review a report owned by owner.
// Only the owner's direct manager or an admin may review.
func CanReviewReport(actor Identity, owner Employee) error {
	switch a := actor.(type) {
	case Admin:
		return nil
	case Manager:
		if owner.ManagerID == a.ID {
			return nil
		}
		return fmt.Errorf("manager %s may only review direct reports: %w", a.ID, ErrForbidden)
	default:
		return fmt.Errorf("role %s may not review reports: %w", actor.Role(), ErrForbidden)
	}
}

// ViewScope describes how wide a listing query may range for an actor.
type ViewScope int

const (
	ScopeOwn ViewScope = iota
	ScopeTeam
	ScopeAll
)

// ViewScopeFor returns the widest listing scope the actor's role grants.
func ViewScopeFor(actor Identity) ViewScope {
	switch actor.(type) {
	case Admin:
		return ScopeAll
	case Manager:
		return ScopeTeam
	default:
		return ScopeOwn
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory resolves user IDs to role variants. Implemented by the
// persistence layer; the engine and API consume it read-only.
type Directory interface {
	// Lookup returns the variant for userID, or ErrUnknownUser.
	Lookup(ctx context.Context, userID string) (Identity, error)

	// ActiveEmployees returns all active employees (reminder selection).
	ActiveEmployees(ctx context.Context) ([]Employee, error)

	// ActiveManagers returns all active managers (digest selection).
	ActiveManagers(ctx context.Context) ([]Manager, error)
}
