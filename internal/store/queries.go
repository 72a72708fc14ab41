package store

// SQL query constants organized by entity.
// All SQL lives here — PostgresStore methods reference these constants.

// Weekly performance queries.
const (
	queryInsertWeeklyPerformance = `
		INSERT INTO weekly_performance (
			listing_id, host_id, week_start, week_end, week_period,
			search_appearances, listing_views, bookings, data_source
		) VALUES (
			@listing_id, @host_id, @week_start, @week_end, @week_period,
			@search_appearances, @listing_views, @bookings, @data_source
		)
		ON CONFLICT (listing_id, week_start) DO NOTHING`

	queryInsertListingMetrics = `
		INSERT INTO listing_metrics (
			listing_id, week_start, view_rate, conversion_rate, search_to_booking_rate
		) VALUES (
			@listing_id, @week_start, @view_rate, @conversion_rate, @search_to_booking_rate
		)
		ON CONFLICT (listing_id, week_start) DO UPDATE SET
			view_rate = EXCLUDED.view_rate,
			conversion_rate = EXCLUDED.conversion_rate,
			search_to_booking_rate = EXCLUDED.search_to_booking_rate`

	queryGetListingHistory = `
		SELECT listing_id, COALESCE(host_id, ''), week_start, week_end,
			COALESCE(week_period, ''), search_appearances, listing_views,
			bookings, COALESCE(data_source, '')
		FROM weekly_performance
		WHERE listing_id = $1
		ORDER BY week_start DESC
		LIMIT $2`

	queryListAllListings = `
		SELECT listing_id, MAX(week_start) AS last_updated
		FROM weekly_performance
		GROUP BY listing_id
		ORDER BY last_updated DESC, listing_id`

	queryWeeklySummaries = `
		SELECT COALESCE(week_period, ''), week_start,
			COUNT(DISTINCT listing_id) AS total_listings,
			COALESCE(SUM(search_appearances), 0) AS total_appearances,
			COALESCE(SUM(listing_views), 0) AS total_views,
			COALESCE(SUM(bookings), 0) AS total_bookings,
			COALESCE(AVG(listing_views * 1.0 / NULLIF(search_appearances, 0)), 0) AS avg_view_rate,
			COALESCE(AVG(bookings * 1.0 / NULLIF(listing_views, 0)), 0) AS avg_conversion_rate
		FROM weekly_performance
		GROUP BY week_period, week_start
		ORDER BY week_start DESC`
)

// Alert ledger queries.
const (
	queryAppendAlert = `
		INSERT INTO alerts (
			listing_id, alert_date, severity_score, severity_level, issues,
			latest_appearances, latest_views, latest_bookings,
			latest_view_rate, latest_conversion_rate,
			avg_appearances, avg_bookings, wow_change_pct,
			recommended_actions, alert_sent_to
		) VALUES (
			@listing_id, @alert_date, @severity_score, @severity_level, @issues,
			@latest_appearances, @latest_views, @latest_bookings,
			@latest_view_rate, @latest_conversion_rate,
			@avg_appearances, @avg_bookings, @wow_change_pct,
			@recommended_actions, @alert_sent_to
		)
		ON CONFLICT (listing_id, alert_date) DO NOTHING`

	queryAlertedListings = `
		SELECT listing_id
		FROM alerts
		WHERE alert_date = $1`

	queryListAlerts = `
		SELECT id, listing_id, alert_date, severity_score, severity_level, issues,
			latest_appearances, latest_views, latest_bookings,
			latest_view_rate, latest_conversion_rate,
			avg_appearances, avg_bookings, wow_change_pct,
			COALESCE(recommended_actions, ''), COALESCE(alert_sent_to, ''),
			resolved, resolved_at, COALESCE(resolved_notes, ''), created_at
		FROM alerts
		WHERE resolved = $1
		  AND CASE severity_level
			WHEN 'CRITICAL' THEN 4
			WHEN 'HIGH' THEN 3
			WHEN 'MEDIUM' THEN 2
			WHEN 'LOW' THEN 1
			ELSE 0
		  END >= $2
		ORDER BY severity_score DESC, created_at DESC
		LIMIT $3`

	queryResolveAlert = `
		UPDATE alerts
		SET resolved = TRUE,
			resolved_at = now(),
			resolved_notes = $2
		WHERE id = $1`
)

// Ingest batch queries.
const (
	queryCreateIngestBatch = `
		INSERT INTO ingest_batches (
			id, source_file, weeks_loaded, rows_loaded, rows_skipped, started_at, status
		) VALUES (
			@id, @source_file, @weeks_loaded, @rows_loaded, @rows_skipped, now(), @status
		)
		RETURNING started_at`

	queryCompleteIngestBatch = `
		UPDATE ingest_batches
		SET completed_at = now(),
			status = @status,
			error_text = @error_text,
			weeks_loaded = @weeks_loaded,
			rows_loaded = @rows_loaded,
			rows_skipped = @rows_skipped
		WHERE id = @id`
)
