package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// JobRecord is one append-only snapshot of an EmailJob's lifecycle state.
type JobRecord struct {
	JobID          string
	QueueName      string
	Status         string
	Priority       string
	AccountID      string
	To             string
	From           string
	Subject        string
	BodyText       string
	BodyHTML       string
	Headers        map[string]string
	CampaignID     string
	AccountAgeDays int
	AttemptsMade   int
	ScheduledAt    time.Time
}

// AttemptRecord is one append-only send/retry attempt.
type AttemptRecord struct {
	AttemptID     string
	JobID         string
	AttemptNumber int
	Action        string
	Outcome       string
	ErrorKind     string
	DelayMsBefore int
}

// AlertRecord is one append-only raise/resolve transition.
type AlertRecord struct {
	AlertID    string
	RuleID     string
	Component  string
	Severity   string
	Message    string
	Transition string // "raised" or "resolved"
}

// Log batches writes to the three append-only tables using go-zero's
// BulkInserter, one inserter per table.
type Log struct {
	jobs     *sqlx.BulkInserter
	attempts *sqlx.BulkInserter
	alerts   *sqlx.BulkInserter
}

// NewLog creates a Log backed by conn, wiring a BulkInserter per table.
func NewLog(conn sqlx.SqlConn) (*Log, error) {
	jobs, err := sqlx.NewBulkInserter(conn,
		"insert into `jobs` (`job_id`, `queue_name`, `status`, `priority`, `account_id`, `to_address`, `from_address`, `subject`, `body_text`, `body_html`, `headers`, `campaign_id`, `account_age_days`, `attempts_made`, `scheduled_at`) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}
	jobs.SetResultHandler(logBulkErr("jobs"))

	attempts, err := sqlx.NewBulkInserter(conn,
		"insert into `attempts` (`attempt_id`, `job_id`, `attempt_number`, `action`, `outcome`, `error_kind`, `delay_ms_before`) values (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}
	attempts.SetResultHandler(logBulkErr("attempts"))

	alerts, err := sqlx.NewBulkInserter(conn,
		"insert into `alerts` (`alert_id`, `rule_id`, `component`, `severity`, `message`, `transition`) values (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}
	alerts.SetResultHandler(logBulkErr("alerts"))

	return &Log{jobs: jobs, attempts: attempts, alerts: alerts}, nil
}

func logBulkErr(table string) func(sql.Result, error) {
	return func(_ sql.Result, err error) {
		if err != nil {
			logx.Errorf("persist: bulk insert into %s failed: %v", table, err)
		}
	}
}

// RecordJob appends a job-lifecycle snapshot.
func (l *Log) RecordJob(r JobRecord) {
	headers, _ := json.Marshal(r.Headers)
	if err := l.jobs.Insert(r.JobID, r.QueueName, r.Status, r.Priority, r.AccountID,
		r.To, r.From, r.Subject, r.BodyText, r.BodyHTML, string(headers), r.CampaignID,
		r.AccountAgeDays, r.AttemptsMade, r.ScheduledAt.UTC().Format(time.RFC3339)); err != nil {
		logx.Errorf("persist: record job %s: %v", r.JobID, err)
	}
}

// RecordAttempt appends a send-attempt record.
func (l *Log) RecordAttempt(r AttemptRecord) {
	if err := l.attempts.Insert(r.AttemptID, r.JobID, r.AttemptNumber, r.Action,
		r.Outcome, r.ErrorKind, r.DelayMsBefore); err != nil {
		logx.Errorf("persist: record attempt for job %s: %v", r.JobID, err)
	}
}

// RecordAlert appends an alert raise/resolve transition.
func (l *Log) RecordAlert(r AlertRecord) {
	if err := l.alerts.Insert(r.AlertID, r.RuleID, r.Component, r.Severity,
		r.Message, r.Transition); err != nil {
		logx.Errorf("persist: record alert %s/%s: %v", r.Component, r.RuleID, err)
	}
}

// Flush forces all pending batched inserts to be written.
func (l *Log) Flush() {
	l.jobs.Flush()
	l.attempts.Flush()
	l.alerts.Flush()
}

// InFlight describes a job recovered from the log whose last terminal
// event is absent, so it must be re-enqueued.
type InFlight struct {
	JobID          string
	QueueName      string
	Priority       string
	AccountID      string
	To             string
	From           string
	Subject        string
	BodyText       string
	BodyHTML       string
	Headers        map[string]string
	CampaignID     string
	AccountAgeDays int
	AttemptsMade   int
	ScheduledAt    time.Time
}

const terminalStatuses = `'succeeded', 'dead_lettered', 'escalated'`

// ReplayInFlight returns the latest snapshot of every job whose last
// recorded status is not terminal, for the startup re-hydration pass
// described by the persisted-state-layout recovery contract.
func ReplayInFlight(ctx context.Context, conn sqlx.SqlConn) ([]InFlight, error) {
	type row struct {
		JobID          string         `db:"job_id"`
		QueueName      string         `db:"queue_name"`
		Priority       string         `db:"priority"`
		AccountID      string         `db:"account_id"`
		To             string         `db:"to_address"`
		From           string         `db:"from_address"`
		Subject        string         `db:"subject"`
		BodyText       sql.NullString `db:"body_text"`
		BodyHTML       sql.NullString `db:"body_html"`
		Headers        sql.NullString `db:"headers"`
		CampaignID     sql.NullString `db:"campaign_id"`
		AccountAgeDays int            `db:"account_age_days"`
		AttemptsMade   int            `db:"attempts_made"`
		ScheduledAt    time.Time      `db:"scheduled_at"`
	}

	var rows []row
	query := `select j.job_id, j.queue_name, j.priority, j.account_id, j.to_address, j.from_address,
		j.subject, j.body_text, j.body_html, j.headers, j.campaign_id, j.account_age_days, j.attempts_made, j.scheduled_at
		from jobs j
		inner join (select job_id, max(seq) as max_seq from jobs group by job_id) latest
			on j.job_id = latest.job_id and j.seq = latest.max_seq
		where j.status not in (` + terminalStatuses + `)`

	if err := conn.QueryRowsCtx(ctx, &rows, query); err != nil {
		return nil, err
	}

	out := make([]InFlight, 0, len(rows))
	for _, r := range rows {
		in := InFlight{
			JobID:          r.JobID,
			QueueName:      r.QueueName,
			Priority:       r.Priority,
			AccountID:      r.AccountID,
			To:             r.To,
			From:           r.From,
			Subject:        r.Subject,
			AccountAgeDays: r.AccountAgeDays,
			AttemptsMade:   r.AttemptsMade,
			ScheduledAt:    r.ScheduledAt,
		}
		if r.BodyText.Valid {
			in.BodyText = r.BodyText.String
		}
		if r.BodyHTML.Valid {
			in.BodyHTML = r.BodyHTML.String
		}
		if r.CampaignID.Valid {
			in.CampaignID = r.CampaignID.String
		}
		if r.Headers.Valid {
			_ = json.Unmarshal([]byte(r.Headers.String), &in.Headers)
		}
		out = append(out, in)
	}
	return out, nil
}
