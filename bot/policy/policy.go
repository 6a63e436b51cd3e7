// Package policy decides whether an account may read or change a board
// resource. Storage returns candidate rows; this package filters them.
package policy

import (
	"context"
	"fmt"

	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/bot/storage"
)

// Action is the kind of access requested.
type Action string

const (
	Read  Action = "read"
	Write Action = "write"
)

// Resource is anything that lives on a board.
type Resource interface {
	Board() int64
}

// Board is a bare board id used as a Resource.
type Board int64

func (b Board) Board() int64 { return int64(b) }

// CategoryResource adapts a category.
type CategoryResource model.Category

func (c CategoryResource) Board() int64 { return c.BoardID }

// GoalResource adapts a goal.
type GoalResource model.Goal

func (g GoalResource) Board() int64 { return g.BoardID }

// Permits reports whether role allows act.
func Permits(role model.Role, act Action) bool {
	switch act {
	case Read:
		return role == model.RoleOwner || role == model.RoleWriter || role == model.RoleReader
	case Write:
		return role == model.RoleOwner || role == model.RoleWriter
	}
	return false
}

// Grant is the resolved set of board roles of one account.
type Grant struct {
	roles map[int64]model.Role
}

// NewGrant builds a Grant from a board id to role map.
func NewGrant(roles map[int64]model.Role) Grant {
	return Grant{roles: roles}
}

// Allows reports whether the account may perform act on res.
func (g Grant) Allows(res Resource, act Action) bool {
	role, ok := g.roles[res.Board()]
	return ok && Permits(role, act)
}

// Evaluator answers (actor, resource, action) questions.
type Evaluator interface {
	Allowed(ctx context.Context, actor int64, res Resource, act Action) (bool, error)
}

// Policy resolves roles through storage.
type Policy struct {
	members storage.Memberships
}

var _ Evaluator = (*Policy)(nil)

// New builds a Policy.
func New(members storage.Memberships) *Policy {
	return &Policy{members: members}
}

// For loads the roles of actor once so many resources can be checked.
func (p *Policy) For(ctx context.Context, actor int64) (Grant, error) {
	roles, err := p.members.Roles(ctx, actor)
	if err != nil {
		return Grant{}, fmt.Errorf("policy: load roles: %w", err)
	}
	return NewGrant(roles), nil
}

// Allowed checks a single resource.
func (p *Policy) Allowed(ctx context.Context, actor int64, res Resource, act Action) (bool, error) {
	g, err := p.For(ctx, actor)
	if err != nil {
		return false, err
	}
	return g.Allows(res, act), nil
}

// Filter keeps the items of in that g allows for act.
func Filter[T any](g Grant, in []T, act Action, res func(T) Resource) []T {
	out := make([]T, 0, len(in))
	for _, item := range in {
		if g.Allows(res(item), act) {
			out = append(out, item)
		}
	}
	return out
}
