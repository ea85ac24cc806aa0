package identity

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

type fakeIdentityStore struct {
	pages []*identitystore.ListUsersOutput
	calls int
}

func (f *fakeIdentityStore) ListUsers(_ context.Context, _ *identitystore.ListUsersInput, _ ...func(*identitystore.Options)) (*identitystore.ListUsersOutput, error) {
	out := f.pages[f.calls]
	f.calls++
	return out, nil
}

func user(id, username string, emails ...string) types.User {
	u := types.User{UserId: aws.String(id), UserName: aws.String(username)}
	for _, e := range emails {
		u.Emails = append(u.Emails, types.Email{Value: aws.String(e)})
	}
	return u
}

func TestResolveUser_ByEmailCaseInsensitive(t *testing.T) {
	fake := &fakeIdentityStore{pages: []*identitystore.ListUsersOutput{
		{Users: []types.User{user("u-1", "dev", "Dev@Example.com")}},
	}}
	r := NewStoreResolver(fake, "d-9067")

	ref, err := r.ResolveUser(context.Background(), "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", ref.ID)
	assert.Equal(t, "Dev@Example.com", ref.Email)
}

func TestResolveUser_ByUsername(t *testing.T) {
	fake := &fakeIdentityStore{pages: []*identitystore.ListUsersOutput{
		{Users: []types.User{user("u-2", "ops.admin", "ops@example.com")}},
	}}
	r := NewStoreResolver(fake, "d-9067")

	ref, err := r.ResolveUser(context.Background(), "OPS.ADMIN")
	require.NoError(t, err)
	assert.Equal(t, "u-2", ref.ID)
	assert.Equal(t, "ops@example.com", ref.Email)
}

func TestResolveUser_Paginates(t *testing.T) {
	fake := &fakeIdentityStore{pages: []*identitystore.ListUsersOutput{
		{Users: []types.User{user("u-1", "first", "first@example.com")}, NextToken: aws.String("next")},
		{Users: []types.User{user("u-2", "second", "second@example.com")}},
	}}
	r := NewStoreResolver(fake, "d-9067")

	ref, err := r.ResolveUser(context.Background(), "second@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-2", ref.ID)
	assert.Equal(t, 2, fake.calls)
}

func TestResolveUser_NotFound(t *testing.T) {
	fake := &fakeIdentityStore{pages: []*identitystore.ListUsersOutput{
		{Users: []types.User{user("u-1", "dev", "dev@example.com")}},
	}}
	r := NewStoreResolver(fake, "d-9067")

	_, err := r.ResolveUser(context.Background(), "ghost@example.com")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
