package persist

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// RateTrackRecord is one (domain, account_id) row of the limiter
// snapshot, written on shutdown and read back to warm the limiter's
// in-memory map on restart. Never touched on the hot path.
type RateTrackRecord struct {
	Domain              string    `db:"domain"`
	AccountID           string    `db:"account_id"`
	AccountAgeDays      int       `db:"account_age_days"`
	MinuteWindowStart   time.Time `db:"minute_window_start"`
	HourWindowStart     time.Time `db:"hour_window_start"`
	DayWindowStart      time.Time `db:"day_window_start"`
	SentThisMinute      int       `db:"sent_this_minute"`
	SentThisHour        int       `db:"sent_this_hour"`
	SentToday           int       `db:"sent_today"`
	FailureCountTotal   int       `db:"failure_count_total"`
	ConsecutiveFailures int       `db:"consecutive_failures"`
	LastSendAt          time.Time `db:"last_send_at"`
}

// SaveRateTracks upserts the full limiter snapshot, one row per key.
func SaveRateTracks(ctx context.Context, conn sqlx.SqlConn, records []RateTrackRecord) error {
	for _, r := range records {
		_, err := conn.ExecCtx(ctx, "insert or replace into `rate_tracks` "+
			"(`domain`, `account_id`, `account_age_days`, `minute_window_start`, `hour_window_start`, `day_window_start`, "+
			"`sent_this_minute`, `sent_this_hour`, `sent_today`, `failure_count_total`, `consecutive_failures`, `last_send_at`) "+
			"values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			r.Domain, r.AccountID, r.AccountAgeDays,
			r.MinuteWindowStart.UTC().Format(time.RFC3339),
			r.HourWindowStart.UTC().Format(time.RFC3339),
			r.DayWindowStart.UTC().Format(time.RFC3339),
			r.SentThisMinute, r.SentThisHour, r.SentToday,
			r.FailureCountTotal, r.ConsecutiveFailures,
			r.LastSendAt.UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadRateTracks reads back every snapshotted key.
func LoadRateTracks(ctx context.Context, conn sqlx.SqlConn) ([]RateTrackRecord, error) {
	var rows []RateTrackRecord
	query := "select `domain`, `account_id`, `account_age_days`, `minute_window_start`, `hour_window_start`, `day_window_start`, " +
		"`sent_this_minute`, `sent_this_hour`, `sent_today`, `failure_count_total`, `consecutive_failures`, `last_send_at` " +
		"from `rate_tracks`"
	if err := conn.QueryRowsCtx(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
