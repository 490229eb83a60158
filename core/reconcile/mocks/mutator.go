package mocks

import (
	"context"

	"bookmark-reconciler/core/reconcile"

	"github.com/stretchr/testify/mock"
)

// Mutator is a mock implementation of reconcile.Mutator
type Mutator struct {
	mock.Mock
}

func (m *Mutator) Create(ctx context.Context, parentID, title, url string, index int) (reconcile.Node, error) {
	args := m.Called(ctx, parentID, title, url, index)
	return args.Get(0).(reconcile.Node), args.Error(1)
}

func (m *Mutator) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Mutator) RemoveSubtree(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Mutator) Update(ctx context.Context, id string, changes reconcile.UpdateFields) error {
	args := m.Called(ctx, id, changes)
	return args.Error(0)
}

func (m *Mutator) Move(ctx context.Context, id string, dest reconcile.Destination) error {
	args := m.Called(ctx, id, dest)
	return args.Error(0)
}

func (m *Mutator) Get(ctx context.Context, id string) (reconcile.Node, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(reconcile.Node), args.Error(1)
}
