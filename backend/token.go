package backend

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// FoundryScope is the token audience of the Azure AI Foundry Agent Service
const FoundryScope = "https://ai.azure.com/.default"

// TokenSource supplies bearer tokens for backend calls
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token
type StaticToken string

// Token returns the fixed token
func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// AzureTokenSource acquires Entra ID tokens through an Azure credential chain
// (managed identity, environment credentials, Azure CLI)
type AzureTokenSource struct {
	cred  azcore.TokenCredential
	scope string
}

// NewAzureTokenSource creates a token source backed by DefaultAzureCredential
func NewAzureTokenSource() (*AzureTokenSource, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return &AzureTokenSource{cred: cred, scope: FoundryScope}, nil
}

// Token returns a token for the Foundry scope
func (a *AzureTokenSource) Token(ctx context.Context) (string, error) {
	tok, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{a.scope}})
	if err != nil {
		return "", fmt.Errorf("failed to acquire Azure token: %w", err)
	}
	return tok.Token, nil
}
