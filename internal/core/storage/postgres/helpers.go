package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
	"github.com/pricewize-lab/pricewize/internal/core/storage"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// nullableString maps "" to SQL NULL so optional fields round-trip cleanly.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// marshalRunErrors marshals run error strings to JSON for the jsonb column.
// An empty list produces nil (SQL NULL) rather than a JSON "null" string.
func marshalRunErrors(errs []string) ([]byte, error) {
	if len(errs) == 0 {
		return nil, nil
	}
	out, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run errors: %w", err)
	}
	return out, nil
}

func scanDeviceRow(row scanner) (*v1.Device, error) {
	var (
		d        v1.Device
		imageURL sql.NullString
	)
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Brand,
		&d.Category,
		&d.ModelSlug,
		&imageURL,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device row: %w", err)
	}
	d.ImageURL = imageURL.String
	return &d, nil
}

func scanDeviceUpsertRow(row scanner) (*v1.Device, bool, error) {
	var (
		d        v1.Device
		imageURL sql.NullString
		created  bool
	)
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Brand,
		&d.Category,
		&d.ModelSlug,
		&imageURL,
		&d.CreatedAt,
		&d.UpdatedAt,
		&created,
	)
	if err != nil {
		return nil, false, err
	}
	d.ImageURL = imageURL.String
	return &d, created, nil
}

func scanTrendingRow(row scanner) (storage.TrendingDevice, error) {
	var (
		entry    storage.TrendingDevice
		imageURL sql.NullString
	)
	err := row.Scan(
		&entry.Device.ID,
		&entry.Device.Name,
		&entry.Device.Brand,
		&entry.Device.Category,
		&entry.Device.ModelSlug,
		&imageURL,
		&entry.Device.CreatedAt,
		&entry.Device.UpdatedAt,
		&entry.ListingCount,
		&entry.LowestPrice,
	)
	if err != nil {
		return storage.TrendingDevice{}, fmt.Errorf("failed to scan trending row: %w", err)
	}
	entry.Device.ImageURL = imageURL.String
	return entry, nil
}

func scanPriceRow(row scanner) (*v1.Price, error) {
	var (
		p          v1.Price
		sellerName sql.NullString
		imageURL   sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.DeviceID,
		&p.Platform,
		&p.Price,
		&p.Condition,
		&p.Location,
		&sellerName,
		&imageURL,
		&p.URL,
		&p.LastSeenAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan price row: %w", err)
	}
	p.SellerName = sellerName.String
	p.ImageURL = imageURL.String
	return &p, nil
}

func scanRunLogRow(row scanner) (*v1.RunLog, error) {
	var (
		entry      v1.RunLog
		errsJSON   []byte
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&entry.ID,
		&entry.Platform,
		&entry.Status,
		&entry.ItemsScraped,
		&entry.ItemsAdded,
		&entry.ItemsUpdated,
		&entry.ItemsSkipped,
		&entry.DurationMs,
		&errsJSON,
		&entry.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run log row: %w", err)
	}
	if len(errsJSON) > 0 {
		if err := json.Unmarshal(errsJSON, &entry.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run errors: %w", err)
		}
	}
	if finishedAt.Valid {
		entry.FinishedAt = finishedAt.Time
	}
	return &entry, nil
}
