package store

import (
	"context"
	"fmt"
)

type ctxKey int

const (
	ownerKey ctxKey = iota
	serviceRoleKey
)

// WithOwner marks ctx as acting on behalf of the given user.
func WithOwner(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ownerKey, userID)
}

// OwnerFrom returns the owner stored in ctx.
func OwnerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey).(string)
	return id, ok && id != ""
}

// WithServiceRole marks ctx as privileged: ownership checks are skipped.
// Only the auth service uses it, to manage the users collection.
func WithServiceRole(ctx context.Context) context.Context {
	return context.WithValue(ctx, serviceRoleKey, true)
}

func isServiceRole(ctx context.Context) bool {
	v, _ := ctx.Value(serviceRoleKey).(bool)
	return v
}

// Scope is the result of authorizing an operation on a collection.
// Providers call Authorize first and then run every check through the scope.
type Scope struct {
	Schema  Schema
	Owner   string
	Service bool
}

// Authorize resolves the collection and the caller identity from ctx.
func Authorize(ctx context.Context, collection string) (Scope, error) {
	schema, ok := Lookup(collection)
	if !ok {
		return Scope{}, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if isServiceRole(ctx) {
		return Scope{Schema: schema, Service: true}, nil
	}
	owner, ok := OwnerFrom(ctx)
	if !ok {
		return Scope{}, ErrNoOwner
	}
	if !schema.Owned {
		return Scope{}, fmt.Errorf("%w: %s requires service role", ErrForbidden, collection)
	}
	return Scope{Schema: schema, Owner: owner}, nil
}

// CheckInsert validates the record columns and its owner.
func (s Scope) CheckInsert(rec Record) error {
	if rec.String(FieldID) == "" {
		return ErrMissingID
	}
	if err := s.checkColumns(rec); err != nil {
		return err
	}
	if s.Service || !s.Schema.Owned {
		return nil
	}
	if rec.String(FieldUserID) != s.Owner {
		return ErrForbidden
	}
	return nil
}

// CheckPatch validates an update patch. Identity columns cannot change.
func (s Scope) CheckPatch(patch Record) error {
	if err := s.checkColumns(patch); err != nil {
		return err
	}
	if _, ok := patch[FieldID]; ok {
		return fmt.Errorf("%w: %s is immutable", ErrForbidden, FieldID)
	}
	if _, ok := patch[FieldUserID]; ok && !s.Service {
		return fmt.Errorf("%w: %s is immutable", ErrForbidden, FieldUserID)
	}
	return nil
}

// CheckQuery validates the fields a query filters and sorts on.
func (s Scope) CheckQuery(q Query) error {
	for _, f := range q.Filters {
		if _, ok := s.Schema.Column(f.Field); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.Schema.Name, f.Field)
		}
	}
	for _, o := range q.Order {
		if _, ok := s.Schema.Column(o.Field); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.Schema.Name, o.Field)
		}
	}
	return nil
}

// Constrain appends the ownership filter to filters.
func (s Scope) Constrain(filters []Filter) []Filter {
	out := append([]Filter(nil), filters...)
	if s.Service || !s.Schema.Owned {
		return out
	}
	return append(out, Eq(FieldUserID, s.Owner))
}

// ByID returns the ownership-constrained filters selecting a single row,
// narrowed further by extra.
func (s Scope) ByID(id string, extra ...Filter) []Filter {
	return s.Constrain(append([]Filter{Eq(FieldID, id)}, extra...))
}

func (s Scope) checkColumns(rec Record) error {
	for k := range rec {
		if _, ok := s.Schema.Column(k); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.Schema.Name, k)
		}
	}
	return nil
}
