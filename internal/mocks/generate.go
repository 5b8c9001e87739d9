// Package mocks provides gomock implementations of the session ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	api := mocks.NewMockAuthAPI(ctrl)
//	api.EXPECT().Login(gomock.Any(), gomock.Any()).Return(resp, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_api_mock.go github.com/target/inventory-console/internal/ports AuthAPI
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_api_mock.go github.com/target/inventory-console/internal/ports UserAPI
