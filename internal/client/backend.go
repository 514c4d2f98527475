package client

import (
	"context"

	"lighthouse/internal/email/dto"
	"lighthouse/pkg/callable"
)

type callableBackend struct {
	client *callable.Client
}

// NewCallableBackend invokes the server operations through the callable protocol.
func NewCallableBackend(client *callable.Client) Backend {
	return &callableBackend{client: client}
}

func (b *callableBackend) ProcessUserLogin(ctx context.Context, idToken string, req *dto.ProcessUserLoginRequest) (*dto.ProcessUserLoginResponse, error) {
	var resp dto.ProcessUserLoginResponse
	if err := b.client.Call(ctx, "processUserLogin", idToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *callableBackend) GetUserEmails(ctx context.Context, idToken string) (*dto.GetUserEmailsResponse, error) {
	var resp dto.GetUserEmailsResponse
	if err := b.client.Call(ctx, "getUserEmails", idToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *callableBackend) RefreshUserTokens(ctx context.Context, idToken string) (*dto.StatusResponse, error) {
	var resp dto.StatusResponse
	if err := b.client.Call(ctx, "refreshUserTokens", idToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *callableBackend) DeleteUserData(ctx context.Context, idToken string) (*dto.StatusResponse, error) {
	var resp dto.StatusResponse
	if err := b.client.Call(ctx, "deleteUserData", idToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
