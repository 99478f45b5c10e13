// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when authentication or authorization fails.
// Implementations should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful authentication.
//
// Required fields (always populated):
//   - UserID: Unique identifier for the user
//
// Optional fields (may be empty):
//   - Email: User's email address
//   - Roles: List of roles/groups the user belongs to
//
// Example:
//
//	info := &AuthInfo{
//	    UserID: "user-123",
//	    Email:  "user@example.com",
//	    Roles:  []string{"admin"},
//	}
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the user's email address.
	// May be empty if not provided by the auth provider.
	Email string

	// Roles contains the user's role memberships for authorization decisions.
	// Common roles: "admin", "editor", "viewer"
	Roles []string
}

// HasRole checks if the user has a specific role.
//
// This is a convenience method for authorization checks:
//
//	if !authInfo.HasRole("admin") {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Default Behavior
//
// The default NopAuthProvider always returns a valid "local-user" with admin
// privileges. This allows local development without any authentication
// infrastructure.
//
// # Hosted Deployments
//
// Hosted deployments implement this interface against a real identity
// provider (Supabase, Auth0, etc.) and return the caller's identity.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's identity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: The authentication token (JWT, session ID, API key, etc.)
	//
	// Returns:
	//   - *AuthInfo: User identity information if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, other errors for failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check request.
//
// This struct follows the common pattern of (subject, action, resource)
// for access control decisions.
//
// Example:
//
//	req := AuthzRequest{
//	    User:         authInfo,
//	    Action:       "generate",
//	    ResourceType: "blog_post",
//	}
//	err := authzProvider.Authorize(ctx, req)
type AuthzRequest struct {
	// User is the authenticated user making the request.
	// This comes from AuthProvider.Validate().
	User *AuthInfo

	// Action is the operation being attempted.
	// Common actions: "create", "read", "generate", "delete"
	Action string

	// ResourceType is the category of resource being accessed.
	// Examples: "blog_post", "draft"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	// If empty, the check is for the resource type in general.
	ResourceID string
}

// AuthzProvider checks if a user is authorized to perform an action.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AuthzProvider interface {
	// Authorize checks if the user is permitted to perform the action.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - req: The authorization request describing user, action, and resource
	//
	// Returns:
	//   - nil: Action is authorized
	//   - error: ErrUnauthorized (or wrapped) if denied
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider is the default authentication provider for local use.
//
// It always returns a valid local user with admin privileges, enabling
// local development without any authentication infrastructure.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
//
// The token parameter is ignored - any value (including empty string)
// results in successful authentication. This is intentional for local
// single-user deployments.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Email:  "",
		Roles:  []string{"admin"},
	}, nil
}

// NopAuthzProvider is the default authorization provider for local use.
//
// It always allows all actions.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthzProvider struct{}

// Authorize always returns nil, allowing all actions.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// AdminAuthzProvider restricts privileged actions to a single configured
// admin identity.
//
// Generation is admin-only in hosted deployments. The admin is identified
// by email, compared case-insensitively; an empty AdminEmail denies every
// privileged action, which fails closed when the deployment forgot to
// configure one. The admin role on the authenticated user is accepted as
// an alternative to the email match so token-based identities without an
// email still work.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	provider := &AdminAuthzProvider{AdminEmail: "sam@thehackai.com"}
//	err := provider.Authorize(ctx, AuthzRequest{
//	    User:         authInfo,
//	    Action:       "generate",
//	    ResourceType: "blog_post",
//	})
type AdminAuthzProvider struct {
	// AdminEmail is the one identity allowed to perform privileged
	// actions. Empty denies everything.
	AdminEmail string
}

// Authorize permits the action when the user matches the configured admin
// email or carries the admin role.
func (p *AdminAuthzProvider) Authorize(_ context.Context, req AuthzRequest) error {
	if req.User == nil {
		return fmt.Errorf("no authenticated user: %w", ErrUnauthorized)
	}
	if req.User.HasRole("admin") {
		return nil
	}
	if p.AdminEmail != "" && strings.EqualFold(req.User.Email, p.AdminEmail) {
		return nil
	}
	return fmt.Errorf("user %s cannot %s %s: %w",
		req.User.UserID, req.Action, req.ResourceType, ErrUnauthorized)
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
	_ AuthzProvider = (*AdminAuthzProvider)(nil)
)
