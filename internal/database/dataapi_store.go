package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
)

// DataAPIClient is the part of the RDS Data API client the store uses.
type DataAPIClient interface {
	ExecuteStatement(ctx context.Context, in *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
}

// DataAPIStore implements Store over the Aurora MySQL Data API, for hosts
// reachable only through HTTPS.
type DataAPIStore struct {
	client      DataAPIClient
	resourceARN string
	secretARN   string
	database    string
}

// NewDataAPIStore addresses one cluster and schema.
func NewDataAPIStore(client DataAPIClient, resourceARN, secretARN, database string) *DataAPIStore {
	return &DataAPIStore{client: client, resourceARN: resourceARN, secretARN: secretARN, database: database}
}

func (s *DataAPIStore) SelectMatching(ctx context.Context, q SelectQuery) ([]Row, error) {
	sql, args := buildSelect(q)
	out, err := s.exec(ctx, sql, args)
	if err != nil {
		return nil, &StoreError{Op: "select", Table: q.Table, Err: err}
	}
	values, err := firstColumn(out)
	if err != nil {
		return nil, &StoreError{Op: "select", Table: q.Table, Err: err}
	}
	rows := make([]Row, 0, len(values))
	for _, v := range values {
		rows = append(rows, Row{Value: v})
	}
	return rows, nil
}

func (s *DataAPIStore) Update(ctx context.Context, q UpdateQuery) (int64, error) {
	sql, args := buildUpdate(q)
	out, err := s.exec(ctx, sql, args)
	if err != nil {
		return 0, &StoreError{Op: "update", Table: q.Table, Err: err}
	}
	return out.NumberOfRecordsUpdated, nil
}

func (s *DataAPIStore) ListTables(ctx context.Context, prefix string) ([]string, error) {
	out, err := s.exec(ctx,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME LIKE ? ORDER BY TABLE_NAME",
		[]interface{}{EscapeLike(prefix) + "%"})
	if err != nil {
		return nil, &StoreError{Op: "list tables", Err: err}
	}
	names, err := firstColumn(out)
	if err != nil {
		return nil, &StoreError{Op: "list tables", Err: err}
	}
	return names, nil
}

func (s *DataAPIStore) ListColumns(ctx context.Context, table string) ([]string, error) {
	out, err := s.exec(ctx,
		"SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
		[]interface{}{table})
	if err != nil {
		return nil, &StoreError{Op: "list columns", Table: table, Err: err}
	}
	names, err := firstColumn(out)
	if err != nil {
		return nil, &StoreError{Op: "list columns", Table: table, Err: err}
	}
	return names, nil
}

func (s *DataAPIStore) CopyTable(ctx context.Context, src, dst string) error {
	for _, stmt := range copyStatements(src, dst) {
		if _, err := s.exec(ctx, stmt, nil); err != nil {
			return &StoreError{Op: "copy", Table: dst, Err: err}
		}
	}
	return nil
}

func (s *DataAPIStore) exec(ctx context.Context, sql string, args []interface{}) (*rdsdata.ExecuteStatementOutput, error) {
	named, params, err := namedParams(sql, args)
	if err != nil {
		return nil, err
	}
	in := &rdsdata.ExecuteStatementInput{
		ResourceArn: aws.String(s.resourceARN),
		SecretArn:   aws.String(s.secretARN),
		Sql:         aws.String(named),
		Parameters:  params,
	}
	if s.database != "" {
		in.Database = aws.String(s.database)
	}
	return s.client.ExecuteStatement(ctx, in)
}

// namedParams rewrites positional ? placeholders outside backtick-quoted
// identifiers to :p1, :p2, ... and binds args to them.
func namedParams(sql string, args []interface{}) (string, []types.SqlParameter, error) {
	var b strings.Builder
	b.Grow(len(sql) + 2*len(args))
	params := make([]types.SqlParameter, 0, len(args))
	quoted := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '`':
			quoted = !quoted
		case c == '?' && !quoted:
			n := len(params)
			if n >= len(args) {
				return "", nil, fmt.Errorf("statement has more placeholders than arguments")
			}
			s, ok := args[n].(string)
			if !ok {
				return "", nil, fmt.Errorf("unsupported argument type %T", args[n])
			}
			name := "p" + strconv.Itoa(n+1)
			params = append(params, types.SqlParameter{
				Name:  aws.String(name),
				Value: &types.FieldMemberStringValue{Value: s},
			})
			b.WriteByte(':')
			b.WriteString(name)
			continue
		}
		b.WriteByte(c)
	}
	if len(params) != len(args) {
		return "", nil, fmt.Errorf("statement has %d placeholders for %d arguments", len(params), len(args))
	}
	return b.String(), params, nil
}

// firstColumn reads the first field of every record as a string. NULLs are
// skipped since they cannot match a LIKE.
func firstColumn(out *rdsdata.ExecuteStatementOutput) ([]string, error) {
	values := make([]string, 0, len(out.Records))
	for _, rec := range out.Records {
		if len(rec) == 0 {
			continue
		}
		switch f := rec[0].(type) {
		case *types.FieldMemberStringValue:
			values = append(values, f.Value)
		case *types.FieldMemberBlobValue:
			values = append(values, string(f.Value))
		case *types.FieldMemberIsNull:
		default:
			return nil, fmt.Errorf("unexpected field type %T", f)
		}
	}
	return values, nil
}

// CheckHealth runs SELECT 1 through the Data API. Pool stats stay zero.
func (s *DataAPIStore) CheckHealth(ctx context.Context) HealthCheckResult {
	start := time.Now()
	result := HealthCheckResult{CheckedAt: start, Status: "healthy"}
	if _, err := s.exec(ctx, "SELECT 1", nil); err != nil {
		result.Status = "unhealthy"
		result.Message = "statement failed: " + err.Error()
	}
	result.Latency = time.Since(start)
	return result
}
