// Package mocks provides test doubles for the theirstack client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	theirstack "github.com/hirely/hirely-cli/pkg/theirstack"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// SearchJobs provides a mock function with given fields: ctx, req
func (_m *MockClient) SearchJobs(ctx context.Context, req theirstack.SearchRequest) (*theirstack.SearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for SearchJobs")
	}

	var r0 *theirstack.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, theirstack.SearchRequest) (*theirstack.SearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*theirstack.SearchResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
