package postgres

// SQL statements for the device catalog, price listings and run log.

const (
	// queryUpsertDevice inserts a canonical device or, when the model slug
	// already exists, refreshes image metadata only. Name, brand, category
	// and the slug itself are immutable after creation.
	// (xmax = 0) is true only for freshly inserted rows, which distinguishes
	// create from refresh in a single atomic statement.
	queryUpsertDevice = `
		INSERT INTO devices (
			id, name, brand, category, model_slug, image_url, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (model_slug) DO UPDATE SET
			image_url  = COALESCE(NULLIF(EXCLUDED.image_url, ''), devices.image_url),
			updated_at = EXCLUDED.updated_at
		RETURNING id, name, brand, category, model_slug, image_url, created_at, updated_at, (xmax = 0)
	`

	querySelectDeviceBySlug = `
		SELECT id, name, brand, category, model_slug, image_url, created_at, updated_at
		FROM devices
		WHERE model_slug = $1
	`

	queryListDevices = `
		SELECT id, name, brand, category, model_slug, image_url, created_at, updated_at
		FROM devices
		ORDER BY created_at ASC
		LIMIT $1
	`

	// queryTrendingDevices ranks by listing count with creation order as the
	// stable tie-breaker. Devices without listings do not trend.
	queryTrendingDevices = `
		SELECT
			d.id, d.name, d.brand, d.category, d.model_slug, d.image_url,
			d.created_at, d.updated_at,
			COUNT(p.id)  AS listing_count,
			MIN(p.price) AS lowest_price
		FROM devices d
		JOIN prices p ON p.device_id = d.id
		GROUP BY d.id
		ORDER BY listing_count DESC, d.created_at ASC
		LIMIT $1
	`

	// queryUpsertPrice is the URL-keyed dedup primitive. Re-observing a URL
	// updates the mutable fields in place; the unique constraint on url makes
	// concurrent batches safe without application-level locking.
	queryUpsertPrice = `
		INSERT INTO prices (
			device_id, platform, price, condition, location,
			seller_name, image_url, url, last_seen_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (url) DO UPDATE SET
			price        = EXCLUDED.price,
			condition    = EXCLUDED.condition,
			location     = EXCLUDED.location,
			seller_name  = EXCLUDED.seller_name,
			image_url    = EXCLUDED.image_url,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING id, (xmax = 0)
	`

	queryListPricesByDevice = `
		SELECT id, device_id, platform, price, condition, location,
		       seller_name, image_url, url, last_seen_at, created_at
		FROM prices
		WHERE device_id = $1
		ORDER BY price ASC, id ASC
	`

	queryListPlatformListings = `
		SELECT platform, price, location
		FROM prices
	`

	queryDistinctLocations = `
		SELECT DISTINCT location
		FROM prices
		WHERE location <> ''
		ORDER BY location ASC
	`

	queryDeleteStalePrices = `
		DELETE FROM prices
		WHERE last_seen_at < $1
	`

	queryInsertRunLog = `
		INSERT INTO run_logs (
			id, platform, status, items_scraped, items_added, items_updated,
			items_skipped, duration_ms, errors, started_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	queryFinishRunLog = `
		UPDATE run_logs
		SET status = $2, items_scraped = $3, items_added = $4, items_updated = $5,
		    items_skipped = $6, duration_ms = $7, errors = $8, finished_at = $9
		WHERE id = $1
	`

	queryListRunLogs = `
		SELECT id, platform, status, items_scraped, items_added, items_updated,
		       items_skipped, duration_ms, errors, started_at, finished_at
		FROM run_logs
		ORDER BY started_at DESC
		LIMIT $1
	`

	queryDeleteRunLogsBefore = `
		DELETE FROM run_logs
		WHERE started_at < $1
	`
)
