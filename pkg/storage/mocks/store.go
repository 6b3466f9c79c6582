// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/williamokano/site_backuper/pkg/storage"
)

// MockStore is a mock implementation of the storage.Store interface
type MockStore struct {
	mock.Mock
}

// Name provides a mock function with given fields:
func (m *MockStore) Name() string {
	ret := m.Called()

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// Type provides a mock function with given fields:
func (m *MockStore) Type() string {
	ret := m.Called()

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// Put provides a mock function with given fields: ctx, sourcePath, key
func (m *MockStore) Put(ctx context.Context, sourcePath string, key string) error {
	ret := m.Called(ctx, sourcePath, key)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, sourcePath, key)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Get provides a mock function with given fields: ctx, key, destPath
func (m *MockStore) Get(ctx context.Context, key string, destPath string) error {
	ret := m.Called(ctx, key, destPath)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, key, destPath)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// List provides a mock function with given fields: ctx, prefix
func (m *MockStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	ret := m.Called(ctx, prefix)

	var r0 []storage.ObjectInfo
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]storage.ObjectInfo, error)); ok {
		return rf(ctx, prefix)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []storage.ObjectInfo); ok {
		r0 = rf(ctx, prefix)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]storage.ObjectInfo)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, prefix)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Stat provides a mock function with given fields: ctx, key
func (m *MockStore) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	ret := m.Called(ctx, key)

	var r0 *storage.ObjectInfo
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*storage.ObjectInfo, error)); ok {
		return rf(ctx, key)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *storage.ObjectInfo); ok {
		r0 = rf(ctx, key)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*storage.ObjectInfo)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, key)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// BucketExists provides a mock function with given fields: ctx
func (m *MockStore) BucketExists(ctx context.Context) (bool, error) {
	ret := m.Called(ctx)

	var r0 bool
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (bool, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) bool); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Get(0).(bool)
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Close provides a mock function with given fields:
func (m *MockStore) Close() error {
	ret := m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock_1 := &MockStore{}
	mock_1.Mock.Test(t)

	t.Cleanup(func() { mock_1.AssertExpectations(t) })

	return mock_1
}
