/*
 * Copyright 2026 The Margo Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"

	"github.com/margolab/margo/pkg/errors"
)

// Role is the role a permission grant assigns a user on a document. Roles are
// ordered: each role includes the capabilities of the roles below it.
type Role string

const (
	// RoleViewer may only view the document.
	RoleViewer Role = "viewer"

	// RoleCommenter may view and comment.
	RoleCommenter Role = "commenter"

	// RoleEditor may view, comment, edit content and create versions.
	RoleEditor Role = "editor"

	// RoleAdmin may additionally manage other users' grants. Unlike the
	// owner, an admin grant cannot rename, delete or restore the document.
	RoleAdmin Role = "admin"
)

// ErrInvalidRole is returned when a role name is not one of the known roles.
var ErrInvalidRole = errors.InvalidArgument("invalid role").WithCode("ErrInvalidRole")

// ParseRole parses the given string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleViewer, RoleCommenter, RoleEditor, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%s: %w", s, ErrInvalidRole)
	}
}

// String returns the string representation of this role.
func (r Role) String() string {
	return string(r)
}

func (r Role) rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleCommenter:
		return 2
	case RoleEditor:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

// IsAtLeast reports whether this role includes the capabilities of the given
// role.
func (r Role) IsAtLeast(required Role) bool {
	return r.rank() >= required.rank()
}
