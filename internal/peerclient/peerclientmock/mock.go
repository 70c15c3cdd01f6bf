// Package peerclientmock is a hand-authored, mockgen-shaped mock of
// peerclient.Client, used by internal/refresh's tests to exercise the
// cleanup and walk logic without dialing real sockets.
// The teacher's go.mod already carries github.com/golang/mock; the
// retrieved source does not show a generated mock to copy, so this file
// follows the conventional mockgen output shape by hand.
package peerclientmock

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"
)

// MockClient is a mock of the peerclient.Client interface.
type MockClient struct {
	ctrl     *gomock.Controller
	recorder *MockClientMockRecorder
}

// MockClientMockRecorder is the mock recorder for MockClient.
type MockClientMockRecorder struct {
	mock *MockClient
}

// NewMockClient creates a new mock instance.
func NewMockClient(ctrl *gomock.Controller) *MockClient {
	mock := &MockClient{ctrl: ctrl}
	mock.recorder = &MockClientMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockClient) EXPECT() *MockClientMockRecorder {
	return m.recorder
}

// Ping mocks base method.
func (m *MockClient) Ping(ctx context.Context) bool {
	ret := m.ctrl.Call(m, "Ping", ctx)
	ret0, _ := ret[0].(bool)
	return ret0
}

// Ping indicates an expected call of Ping.
func (mr *MockClientMockRecorder) Ping(ctx interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ping", reflect.TypeOf((*MockClient)(nil).Ping), ctx)
}

// FindNode mocks base method.
func (m *MockClient) FindNode(ctx context.Context, targetBID, callerCtx string) (string, bool, error) {
	ret := m.ctrl.Call(m, "FindNode", ctx, targetBID, callerCtx)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// FindNode indicates an expected call of FindNode.
func (mr *MockClientMockRecorder) FindNode(ctx, targetBID, callerCtx interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FindNode", reflect.TypeOf((*MockClient)(nil).FindNode), ctx, targetBID, callerCtx)
}
