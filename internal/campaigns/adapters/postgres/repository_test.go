package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
)

// fakeRowScanner implements RowScanner for tests.
type fakeRowScanner struct {
	rows []fakeRow
	i    int
	err  error
}

type fakeRow struct {
	values []any
}

func (f *fakeRowScanner) Next() bool {
	return f.i < len(f.rows)
}

func (f *fakeRowScanner) Scan(dest ...any) error {
	if f.i >= len(f.rows) {
		return errors.New("no more rows")
	}
	row := f.rows[f.i]
	if len(dest) != len(row.values) {
		return errors.New("dest length mismatch")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = row.values[i].(string)
		case *float64:
			*d = row.values[i].(float64)
		case *time.Time:
			*d = row.values[i].(time.Time)
		case *pq.StringArray:
			*d = row.values[i].(pq.StringArray)
		case *[]byte:
			*d = row.values[i].([]byte)
		default:
			return errors.New("unsupported dest type")
		}
	}
	f.i++
	return nil
}

func (f *fakeRowScanner) Err() error { return f.err }

func (f *fakeRowScanner) Close() error { return nil }

// fakeDB implements DB.
type fakeDB struct {
	QueryFn   func(ctx context.Context, query string, args ...any) (RowScanner, error)
	lastQuery string
	lastArgs  []any
}

func (f *fakeDB) QueryContext(ctx context.Context, query string, args ...any) (RowScanner, error) {
	f.lastQuery = query
	f.lastArgs = args
	return f.QueryFn(ctx, query, args...)
}

func TestFetchWindow_ScansCampaigns(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: []fakeRow{
				{values: []any{
					"c1", "January Sale", start, end, 1000.0,
					pq.StringArray{"SAVE10"},
					pq.StringArray{"px-1"},
					[]byte(`[{"source":"newsletter","medium":"email","campaign":"jan-sale"}]`),
				}},
			}}, nil
		},
	}

	repo := NewCampaignRepository(db)
	got, err := repo.FetchWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 campaign, got %d", len(got))
	}

	c := got[0]
	if c.ID != "c1" || c.Cost != 1000 {
		t.Fatalf("unexpected campaign: %+v", c)
	}
	if len(c.PromoCodes) != 1 || c.PromoCodes[0] != "SAVE10" {
		t.Fatalf("unexpected promo codes: %v", c.PromoCodes)
	}
	if len(c.UTMs) != 1 || c.UTMs[0].Source != "newsletter" {
		t.Fatalf("unexpected utm tuples: %v", c.UTMs)
	}

	if !strings.Contains(db.lastQuery, "FROM campaigns") {
		t.Fatalf("unexpected query: %s", db.lastQuery)
	}
	if len(db.lastArgs) != 2 {
		t.Fatalf("expected 2 args, got %d", len(db.lastArgs))
	}
}

func TestFetchWindow_PropagatesQueryError(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return nil, errors.New("connection refused")
		},
	}

	repo := NewCampaignRepository(db)
	if _, err := repo.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFetchWindow_InvalidUTMJSON(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: []fakeRow{
				{values: []any{
					"c1", "x", time.Now(), time.Now(), 0.0,
					pq.StringArray{}, pq.StringArray{}, []byte(`{broken`),
				}},
			}}, nil
		},
	}

	repo := NewCampaignRepository(db)
	if _, err := repo.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatalf("expected json error")
	}
}
