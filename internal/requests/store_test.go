package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

func sampleDraft(title string) procurement.Draft {
	d := procurement.Draft{
		RequestorName: "John Smith",
		Title:         title,
		VendorName:    "Dell Technologies",
		VATID:         "DE987654321",
		Department:    "IT",
		OrderLines: []procurement.OrderLine{
			procurement.NewOrderLine("Dell Latitude", decimal.RequireFromString("1299.00"), 2, "pieces"),
			procurement.NewOrderLine("Docking station", decimal.RequireFromString("189.50"), 2, "pieces"),
		},
	}
	procurement.RecomputeTotal(&d)
	return d
}

func openedAt(title string, at time.Time) procurement.ProcurementRequest {
	w := procurement.NewWorkflow(nil).WithClock(func() time.Time { return at })
	return w.Open(sampleDraft(title))
}

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"dynamodb": func(t *testing.T) Store {
			return NewDynamoStore(newMockDynamo(), "requests")
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_CreateGetRoundTrip(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			created := time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC)
			req := openedAt("Laptops", created)
			id, err := s.Create(ctx, &req)
			require.NoError(t, err)
			require.NotEmpty(t, id)
			assert.Equal(t, id, req.ID)

			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Laptops", got.Title)
			assert.Equal(t, procurement.StatusOpen, got.Status)
			assert.True(t, got.CreatedAt.Equal(created))
			assert.True(t, got.TotalCost.Equal(decimal.RequireFromString("2977.00")), got.TotalCost.String())
			require.Len(t, got.OrderLines, 2)
			assert.True(t, got.OrderLines[1].TotalPrice.Equal(decimal.RequireFromString("379.00")))
			require.Len(t, got.History, 1)
			assert.Equal(t, "Request created", got.History[0].Notes)
		})
	}
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			got, err := factory(t).Get(context.Background(), "does-not-exist")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, title := range []string{"first", "second", "third"} {
				req := openedAt(title, base.Add(time.Duration(i)*time.Hour))
				_, err := s.Create(ctx, &req)
				require.NoError(t, err)
			}

			all, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "third", all[0].Title)
			assert.Equal(t, "second", all[1].Title)
			assert.Equal(t, "first", all[2].Title)
		})
	}
}

func TestStore_UpdateStatusAppendsHistory(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			created := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
			req := openedAt("Monitors", created)
			_, err := s.Create(ctx, &req)
			require.NoError(t, err)

			moved := created.Add(time.Hour)
			w := procurement.NewWorkflow(nil).WithClock(func() time.Time { return moved })
			next, err := w.Transition(req, procurement.StatusInProgress, "ordered")
			require.NoError(t, err)
			require.NoError(t, s.UpdateStatus(ctx, req.ID, procurement.StatusOpen, next))

			got, err := s.Get(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, procurement.StatusInProgress, got.Status)
			assert.True(t, got.UpdatedAt.Equal(moved))
			require.Len(t, got.History, 2)
			assert.Equal(t, procurement.StatusOpen, got.History[1].From)
			assert.Equal(t, procurement.StatusInProgress, got.History[1].To)
			assert.Equal(t, "ordered", got.History[1].Notes)
			assert.True(t, got.CreatedAt.Equal(created))
		})
	}
}

func TestStore_UpdateStatusMismatch(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			req := openedAt("Chairs", time.Now().UTC())
			_, err := s.Create(ctx, &req)
			require.NoError(t, err)

			w := procurement.NewWorkflow(nil)
			next, err := w.Transition(req, procurement.StatusClosed, "")
			require.NoError(t, err)

			err = s.UpdateStatus(ctx, req.ID, procurement.StatusInProgress, next)
			assert.True(t, errors.Is(err, ErrStatusMismatch), "got %v", err)

			got, err := s.Get(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, procurement.StatusOpen, got.Status)
			assert.Len(t, got.History, 1)
		})
	}
}

func TestStore_UpdateStatusUnknownID(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			next, err := procurement.NewWorkflow(nil).Transition(openedAt("x", time.Now()), procurement.StatusClosed, "")
			require.NoError(t, err)
			err = factory(t).UpdateStatus(context.Background(), "nope", procurement.StatusOpen, next)
			assert.ErrorIs(t, err, ErrStatusMismatch)
		})
	}
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			req := openedAt("Desks", time.Now().UTC())
			_, err := s.Create(ctx, &req)
			require.NoError(t, err)

			req.Title = "changed after create"
			got, err := s.Get(ctx, req.ID)
			require.NoError(t, err)
			got.OrderLines[0].PositionDescription = "changed after get"

			again, err := s.Get(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, "Desks", again.Title)
			assert.Equal(t, "Dell Latitude", again.OrderLines[0].PositionDescription)
		})
	}
}

func TestDynamoStore_ListFollowsPagination(t *testing.T) {
	ctx := context.Background()
	m := newMockDynamo()
	m.pageSize = 2
	s := NewDynamoStore(m, "requests")

	for i := 0; i < 5; i++ {
		req := openedAt("r", time.Date(2025, 1, 1, i, 0, 0, 0, time.UTC))
		if _, err := s.Create(ctx, &req); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 requests, got %d", len(all))
	}
	if m.scans != 3 {
		t.Fatalf("expected 3 scan pages, got %d", m.scans)
	}
	if all[0].CreatedAt.Hour() != 4 {
		t.Fatalf("expected newest first, got %v", all[0].CreatedAt)
	}
}

func TestDynamoStore_MoneyStoredAsStrings(t *testing.T) {
	ctx := context.Background()
	m := newMockDynamo()
	s := NewDynamoStore(m, "requests")
	s.newID = func() string { return "fixed-id" }

	req := openedAt("Licenses", time.Now().UTC())
	if _, err := s.Create(ctx, &req); err != nil {
		t.Fatalf("create: %v", err)
	}

	var rec requestRecord
	if err := attributevalue.UnmarshalMap(m.items["fixed-id"], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.TotalCost != "2977" {
		t.Fatalf("total_cost stored as %q", rec.TotalCost)
	}
	if rec.OrderLines[0].UnitPrice != "1299" {
		t.Fatalf("unit_price stored as %q", rec.OrderLines[0].UnitPrice)
	}
}

func TestDynamoStore_CreateDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewDynamoStore(newMockDynamo(), "requests")
	s.newID = func() string { return "same" }

	a := openedAt("a", time.Now().UTC())
	if _, err := s.Create(ctx, &a); err != nil {
		t.Fatalf("first create: %v", err)
	}
	b := openedAt("b", time.Now().UTC())
	if _, err := s.Create(ctx, &b); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
}

func TestDynamoStore_PutErrorWrapped(t *testing.T) {
	m := newMockDynamo()
	m.putErr = errors.New("throttled")
	s := NewDynamoStore(m, "requests")

	req := openedAt("a", time.Now().UTC())
	_, err := s.Create(context.Background(), &req)
	if err == nil || !errors.Is(err, m.putErr) {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestSQLite_MigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, ApplyMigrations(ctx, s.db))
	v, err := SchemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.String())

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, len(Migrations), n)
}
