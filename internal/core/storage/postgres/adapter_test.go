package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	"github.com/pricewize-lab/pricewize/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func TestAdapter_UpsertDevice(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		created     bool
		wantCreated bool
	}{
		{name: "new slug inserts", created: true, wantCreated: true},
		{name: "existing slug refreshes", created: false, wantCreated: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			device := &v1.Device{
				ID:        "dev-1",
				Name:      "iPhone 13 Pro Max",
				Brand:     "Apple",
				Category:  v1.CategoryPhone,
				ModelSlug: "iphone-13-pro-max",
				UpdatedAt: now,
			}

			mock.ExpectQuery(regexp.QuoteMeta(queryUpsertDevice)).
				WithArgs(
					device.ID,
					device.Name,
					device.Brand,
					device.Category,
					device.ModelSlug,
					device.ImageURL,
					device.UpdatedAt,
				).
				WillReturnRows(sqlmock.NewRows(deviceUpsertColumns()).
					AddRow("dev-1", device.Name, device.Brand, string(device.Category),
						device.ModelSlug, nil, now, now, tc.created))

			stored, created, err := adapter.UpsertDevice(context.Background(), device)
			require.NoError(t, err)
			require.Equal(t, tc.wantCreated, created)
			require.Equal(t, "iphone-13-pro-max", stored.ModelSlug)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_GetDeviceBySlug_NotFound(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(querySelectDeviceBySlug)).
		WithArgs("unknown-slug").
		WillReturnError(sql.ErrNoRows)

	_, err := adapter.GetDeviceBySlug(context.Background(), "unknown-slug")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpsertPrice(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		inserted    bool
		wantCreated bool
	}{
		{name: "new url inserts", inserted: true, wantCreated: true},
		{name: "seen url updates in place", inserted: false, wantCreated: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			price := &v1.Price{
				DeviceID:   "dev-1",
				Platform:   "olx",
				Price:      62500,
				Condition:  v1.ConditionGood,
				Location:   "Lahore",
				URL:        "https://olx.example/item/1",
				LastSeenAt: now,
			}

			mock.ExpectQuery(regexp.QuoteMeta(queryUpsertPrice)).
				WithArgs(
					price.DeviceID,
					price.Platform,
					price.Price,
					price.Condition,
					price.Location,
					sqlmock.AnyArg(),
					sqlmock.AnyArg(),
					price.URL,
					price.LastSeenAt,
				).
				WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(int64(7), tc.inserted))

			created, err := adapter.UpsertPrice(context.Background(), price)
			require.NoError(t, err)
			require.Equal(t, tc.wantCreated, created)
			require.Equal(t, int64(7), price.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_ListPricesByDevice(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	rows := sqlmock.NewRows(priceRowColumns()).
		AddRow(int64(1), "dev-1", "olx", int64(60000), "Good", "Lahore", nil, nil,
			"https://olx.example/item/1", now, now).
		AddRow(int64(2), "dev-1", "priceoye", int64(65000), "Excellent", "Karachi", "Ali", nil,
			"https://priceoye.example/item/2", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(queryListPricesByDevice)).
		WithArgs("dev-1").
		WillReturnRows(rows)

	prices, err := adapter.ListPricesByDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	require.Len(t, prices, 2)
	require.Equal(t, int64(60000), prices[0].Price)
	require.Equal(t, "Ali", prices[1].SellerName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_TrendingDevices(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "name", "brand", "category", "model_slug", "image_url",
		"created_at", "updated_at", "listing_count", "lowest_price",
	}).
		AddRow("dev-1", "iPhone 13", "Apple", "phone", "iphone-13", nil, now, now, 5, int64(50000)).
		AddRow("dev-2", "Galaxy S23", "Samsung", "phone", "samsung-galaxy-s23", nil, now, now, 3, int64(70000))

	mock.ExpectQuery(regexp.QuoteMeta(queryTrendingDevices)).
		WithArgs(10).
		WillReturnRows(rows)

	trending, err := adapter.TrendingDevices(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	require.Equal(t, "iphone-13", trending[0].Device.ModelSlug)
	require.Equal(t, 5, trending[0].ListingCount)
	require.Equal(t, int64(50000), trending[0].LowestPrice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RunLogLifecycle(t *testing.T) {
	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	finished := started.Add(12 * time.Second)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	entry := &v1.RunLog{
		ID:        "run-1",
		Platform:  "all",
		Status:    v1.RunStatusRunning,
		StartedAt: started,
	}

	mock.ExpectExec(regexp.QuoteMeta(queryInsertRunLog)).
		WithArgs(entry.ID, entry.Platform, entry.Status, 0, 0, 0, 0, int64(0),
			sqlmock.AnyArg(), entry.StartedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.CreateRunLog(context.Background(), entry))

	entry.Status = v1.RunStatusPartial
	entry.ItemsScraped = 12
	entry.ItemsAdded = 8
	entry.ItemsUpdated = 3
	entry.ItemsSkipped = 1
	entry.DurationMs = 12000
	entry.Errors = []string{"olx: fetch timeout"}
	entry.FinishedAt = finished

	mock.ExpectExec(regexp.QuoteMeta(queryFinishRunLog)).
		WithArgs(entry.ID, entry.Status, 12, 8, 3, 1, int64(12000),
			[]byte(`["olx: fetch timeout"]`), finished).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.FinishRunLog(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_DeleteRunLogsBefore(t *testing.T) {
	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryDeleteRunLogsBefore)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := adapter.DeleteRunLogsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(4), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:               db,
		stmtUpsertDevice: mustPrepareStmt(t, db, mock, queryUpsertDevice),
		stmtDeviceBySlug: mustPrepareStmt(t, db, mock, querySelectDeviceBySlug),
		stmtUpsertPrice:  mustPrepareStmt(t, db, mock, queryUpsertPrice),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func deviceUpsertColumns() []string {
	return []string{
		"id", "name", "brand", "category", "model_slug", "image_url",
		"created_at", "updated_at", "inserted",
	}
}

func priceRowColumns() []string {
	return []string{
		"id", "device_id", "platform", "price", "condition", "location",
		"seller_name", "image_url", "url", "last_seen_at", "created_at",
	}
}
