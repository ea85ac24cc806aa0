// Package identity resolves principals against the AWS Identity Store.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/identitystore/types"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

// IdentityStoreAPI is the subset of the Identity Store client the resolver
// uses.
type IdentityStoreAPI interface {
	ListUsers(ctx context.Context, params *identitystore.ListUsersInput, optFns ...func(*identitystore.Options)) (*identitystore.ListUsersOutput, error)
}

// StoreResolver looks up users by email address or username.
type StoreResolver struct {
	client  IdentityStoreAPI
	storeID string
}

// NewStoreResolver builds a resolver for the given identity store.
func NewStoreResolver(client IdentityStoreAPI, storeID string) *StoreResolver {
	return &StoreResolver{client: client, storeID: storeID}
}

// ResolveUser pages through the identity store and returns the first user
// whose email or username matches, case-insensitively. An absent user is a
// NotFoundError.
func (r *StoreResolver) ResolveUser(ctx context.Context, emailOrUsername string) (*domain.PrincipalRef, error) {
	needle := strings.ToLower(emailOrUsername)
	var nextToken *string
	for {
		out, err := r.client.ListUsers(ctx, &identitystore.ListUsersInput{
			IdentityStoreId: aws.String(r.storeID),
			NextToken:       nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list identity store users: %w", err)
		}
		for _, user := range out.Users {
			if matchesEmail(user.Emails, needle) || strings.ToLower(aws.ToString(user.UserName)) == needle {
				return &domain.PrincipalRef{
					ID:    aws.ToString(user.UserId),
					Email: primaryEmail(user.Emails, emailOrUsername),
				}, nil
			}
		}
		if out.NextToken == nil {
			return nil, domain.ErrNotFound("user %s not found in identity store", emailOrUsername)
		}
		nextToken = out.NextToken
	}
}

func matchesEmail(emails []types.Email, needle string) bool {
	for _, e := range emails {
		if strings.ToLower(aws.ToString(e.Value)) == needle {
			return true
		}
	}
	return false
}

// primaryEmail picks the first listed email, falling back to the lookup
// value when the user record carries none.
func primaryEmail(emails []types.Email, fallback string) string {
	for _, e := range emails {
		if v := aws.ToString(e.Value); v != "" {
			return v
		}
	}
	return fallback
}
