package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
)

// RDS auth tokens are valid for 15 minutes; refresh well before that.
const rdsTokenLifetime = 10 * time.Minute

// RDSIAMAuth issues IAM database authentication tokens for a MySQL user on
// RDS or Aurora and caches them until shortly before they expire.
type RDSIAMAuth struct {
	endpoint string // host:port
	region   string
	dbUser   string
	creds    aws.CredentialsProvider

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
	build   func(ctx context.Context, endpoint, region, dbUser string, creds aws.CredentialsProvider) (string, error)
}

// RDSIAMConfig selects the endpoint and credentials. Static keys are used
// when set, otherwise the default AWS credential chain.
type RDSIAMConfig struct {
	Endpoint        string
	Region          string
	DBUser          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewRDSIAMAuth resolves AWS credentials and returns a token source.
func NewRDSIAMAuth(ctx context.Context, cfg RDSIAMConfig) (*RDSIAMAuth, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.DBUser == "" {
		return nil, fmt.Errorf("database user is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &RDSIAMAuth{
		endpoint: cfg.Endpoint,
		region:   cfg.Region,
		dbUser:   cfg.DBUser,
		creds:    awsCfg.Credentials,
		now:      time.Now,
		build: func(ctx context.Context, endpoint, region, dbUser string, creds aws.CredentialsProvider) (string, error) {
			return auth.BuildAuthToken(ctx, endpoint, region, dbUser, creds)
		},
	}, nil
}

// Token returns a cached token or builds a new one.
func (a *RDSIAMAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.expires) {
		return a.token, nil
	}
	token, err := a.build(ctx, a.endpoint, a.region, a.dbUser, a.creds)
	if err != nil {
		return "", fmt.Errorf("failed to build auth token: %w", err)
	}
	a.token = token
	a.expires = a.now().Add(rdsTokenLifetime)
	return token, nil
}
