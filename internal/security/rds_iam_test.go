package security

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRDSIAMAuthCachesToken(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	a := &RDSIAMAuth{
		endpoint: "db.example:3306",
		region:   "us-east-1",
		dbUser:   "cloner",
		now:      func() time.Time { return now },
		build: func(_ context.Context, endpoint, region, dbUser string, _ aws.CredentialsProvider) (string, error) {
			calls++
			assert.Equal(t, "db.example:3306", endpoint)
			assert.Equal(t, "us-east-1", region)
			assert.Equal(t, "cloner", dbUser)
			return "token-" + strconv.Itoa(calls), nil
		},
	}

	tok, err := a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	now = now.Add(5 * time.Minute)
	tok, err = a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	now = now.Add(rdsTokenLifetime)
	tok, err = a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, 2, calls)
}

func TestRDSIAMAuthBuildError(t *testing.T) {
	a := &RDSIAMAuth{
		now: time.Now,
		build: func(context.Context, string, string, string, aws.CredentialsProvider) (string, error) {
			return "", errors.New("no credentials")
		},
	}
	_, err := a.Token(context.Background())
	assert.ErrorContains(t, err, "no credentials")
}

func TestNewRDSIAMAuthRequiresRegionAndUser(t *testing.T) {
	_, err := NewRDSIAMAuth(context.Background(), RDSIAMConfig{DBUser: "cloner"})
	assert.Error(t, err)
	_, err = NewRDSIAMAuth(context.Background(), RDSIAMConfig{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNewRDSIAMAuthStaticCredentials(t *testing.T) {
	a, err := NewRDSIAMAuth(context.Background(), RDSIAMConfig{
		Endpoint: "db.example:3306", Region: "us-east-1", DBUser: "cloner",
		AccessKeyID: "AKID", SecretAccessKey: "SECRET",
	})
	require.NoError(t, err)
	creds, err := a.creds.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
}
