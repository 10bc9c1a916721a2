package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/harborline/stevedore/pkg/execution"
	"github.com/harborline/stevedore/pkg/types"
)

// PostgresStore implements Store on PostgreSQL. Configuration payloads
// (strike/scan configurations, job data) are stored as JSONB columns.
type PostgresStore struct {
	db      *sqlx.DB
	dataDir string
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS job_types (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	version    TEXT NOT NULL,
	is_paused  BOOLEAN NOT NULL DEFAULT FALSE,
	cpus       DOUBLE PRECISION NOT NULL,
	mem_mb     DOUBLE PRECISION NOT NULL,
	disk_mb    DOUBLE PRECISION NOT NULL,
	UNIQUE (name, version)
);

CREATE TABLE IF NOT EXISTS queue (
	queue_id    BIGSERIAL PRIMARY KEY,
	job_type_id TEXT NOT NULL REFERENCES job_types (id),
	priority    INTEGER NOT NULL,
	cpus        DOUBLE PRECISION NOT NULL,
	mem_mb      DOUBLE PRECISION NOT NULL,
	disk_mb     DOUBLE PRECISION NOT NULL,
	config_ref  TEXT NOT NULL,
	queued      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS queue_order ON queue (priority, queue_id);

CREATE TABLE IF NOT EXISTS trigger_events (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	description JSONB NOT NULL,
	occurred    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	job_type_id TEXT NOT NULL REFERENCES job_types (id),
	status      TEXT NOT NULL,
	data        JSONB NOT NULL,
	event_id    TEXT,
	created     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS job_exes (
	id          TEXT PRIMARY KEY,
	job_type_id TEXT NOT NULL,
	node_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	status      TEXT NOT NULL,
	started     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS strikes (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	title         TEXT,
	description   TEXT,
	configuration JSONB NOT NULL,
	job_id        TEXT,
	created       TIMESTAMPTZ NOT NULL,
	last_modified TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scans (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	title         TEXT,
	description   TEXT,
	configuration JSONB NOT NULL,
	job_id        TEXT,
	dry_run       BOOLEAN NOT NULL DEFAULT FALSE,
	created       TIMESTAMPTZ NOT NULL,
	last_modified TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ingests (
	id                BIGSERIAL PRIMARY KEY,
	file_name         TEXT NOT NULL,
	strike_id         TEXT,
	scan_id           TEXT,
	status            TEXT NOT NULL,
	bytes_transferred BIGINT NOT NULL DEFAULT 0,
	transfer_started  TIMESTAMPTZ,
	transfer_ended    TIMESTAMPTZ,
	media_type        TEXT,
	file_size         BIGINT NOT NULL DEFAULT 0,
	data_type         TEXT NOT NULL DEFAULT '',
	file_path         TEXT,
	workspace_id      TEXT,
	new_file_path     TEXT,
	new_workspace_id  TEXT,
	job_id            TEXT,
	ingest_started    TIMESTAMPTZ,
	ingest_ended      TIMESTAMPTZ,
	data_started      TIMESTAMPTZ,
	data_ended        TIMESTAMPTZ,
	created           TIMESTAMPTZ NOT NULL,
	last_modified     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ingests_scan ON ingests (scan_id);
CREATE INDEX IF NOT EXISTS ingests_strike ON ingests (strike_id);
`

// NewPostgresStore connects to the database named by dsn and ensures the
// schema exists. dataDir names the workspace root the nodes share.
func NewPostgresStore(dsn, dataDir string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := db.Exec(pgSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PostgresStore{db: db, dataDir: dataDir}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type queueRow struct {
	QueueID   int64     `db:"queue_id"`
	JobTypeID string    `db:"job_type_id"`
	Priority  int       `db:"priority"`
	Cpus      float64   `db:"cpus"`
	MemMB     float64   `db:"mem_mb"`
	DiskMB    float64   `db:"disk_mb"`
	ConfigRef string    `db:"config_ref"`
	Queued    time.Time `db:"queued"`
}

func (r queueRow) toQueuedJobExe() *types.QueuedJobExe {
	return &types.QueuedJobExe{
		QueueID:           r.QueueID,
		JobTypeID:         r.JobTypeID,
		Priority:          r.Priority,
		RequiredResources: types.Resources{Cpus: r.Cpus, MemMB: r.MemMB, DiskMB: r.DiskMB},
		ConfigurationRef:  r.ConfigRef,
		Queued:            r.Queued,
	}
}

func (s *PostgresStore) GetQueue() ([]*types.QueuedJobExe, error) {
	var rows []queueRow
	err := s.db.Select(&rows,
		`SELECT queue_id, job_type_id, priority, cpus, mem_mb, disk_mb, config_ref, queued
		 FROM queue ORDER BY priority, queue_id`)
	if err != nil {
		return nil, err
	}
	queue := make([]*types.QueuedJobExe, 0, len(rows))
	for _, r := range rows {
		queue = append(queue, r.toQueuedJobExe())
	}
	return queue, nil
}

func (s *PostgresStore) Enqueue(qe *types.QueuedJobExe) error {
	if qe.Queued.IsZero() {
		qe.Queued = time.Now().UTC()
	}
	return s.db.QueryRow(
		`INSERT INTO queue (job_type_id, priority, cpus, mem_mb, disk_mb, config_ref, queued)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING queue_id`,
		qe.JobTypeID, qe.Priority,
		qe.RequiredResources.Cpus, qe.RequiredResources.MemMB, qe.RequiredResources.DiskMB,
		qe.ConfigurationRef, qe.Queued,
	).Scan(&qe.QueueID)
}

// ScheduleJobExecutions promotes the batch from queued to running in a
// single transaction. Deleting the queue rows guards against another
// scheduler instance grabbing the same entries.
func (s *PostgresStore) ScheduleJobExecutions(batch []*types.QueuedJobExe) ([]*execution.RunningJobExe, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var scheduled []*execution.RunningJobExe
	for _, qe := range batch {
		res, err := tx.Exec(`DELETE FROM queue WHERE queue_id = $1`, qe.QueueID)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("queue entry %d: %w", qe.QueueID, ErrNotFound)
		}

		jt, err := s.getJobTypeByIDTx(tx, qe.JobTypeID)
		if err != nil {
			return nil, err
		}

		exe := buildRunningJobExe(qe, jt, s.dataDir)
		_, err = tx.Exec(
			`INSERT INTO job_exes (id, job_type_id, node_id, agent_id, status, started)
			 VALUES ($1, $2, $3, $4, 'RUNNING', $5)`,
			exe.ID, exe.JobTypeID, exe.NodeID, exe.AgentID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		scheduled = append(scheduled, exe)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return scheduled, nil
}

func (s *PostgresStore) QueueNewJob(jobType *types.JobType, data types.JobData, event *types.TriggerEvent) (*types.Job, error) {
	job := &types.Job{
		ID:        uuid.New().String(),
		JobTypeID: jobType.ID,
		Status:    "QUEUED",
		Data:      data,
		Created:   time.Now().UTC(),
	}
	if event != nil {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		job.EventID = event.ID
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if event != nil {
		desc, err := json.Marshal(event.Description)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(
			`INSERT INTO trigger_events (id, type, description, occurred) VALUES ($1, $2, $3, $4)`,
			event.ID, event.Type, desc, event.Occurred)
		if err != nil {
			return nil, err
		}
	}

	jobData, err := json.Marshal(job.Data)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(
		`INSERT INTO jobs (id, job_type_id, status, data, event_id, created)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		job.ID, job.JobTypeID, job.Status, jobData, job.EventID, job.Created)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(
		`INSERT INTO queue (job_type_id, priority, cpus, mem_mb, disk_mb, config_ref, queued)
		 VALUES ($1, 100, $2, $3, $4, $5, $6)`,
		jobType.ID, jobType.Resources.Cpus, jobType.Resources.MemMB, jobType.Resources.DiskMB,
		job.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

type jobTypeRow struct {
	ID       string  `db:"id"`
	Name     string  `db:"name"`
	Version  string  `db:"version"`
	IsPaused bool    `db:"is_paused"`
	Cpus     float64 `db:"cpus"`
	MemMB    float64 `db:"mem_mb"`
	DiskMB   float64 `db:"disk_mb"`
}

func (r jobTypeRow) toJobType() types.JobType {
	return types.JobType{
		ID:       r.ID,
		Name:     r.Name,
		Version:  r.Version,
		IsPaused: r.IsPaused,
		Resources: types.Resources{
			Cpus:   r.Cpus,
			MemMB:  r.MemMB,
			DiskMB: r.DiskMB,
		},
	}
}

func (s *PostgresStore) CreateJobType(jt *types.JobType) error {
	if jt.ID == "" {
		jt.ID = fmt.Sprintf("%s-%s", jt.Name, jt.Version)
	}
	_, err := s.db.Exec(
		`INSERT INTO job_types (id, name, version, is_paused, cpus, mem_mb, disk_mb)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			is_paused = EXCLUDED.is_paused,
			cpus = EXCLUDED.cpus,
			mem_mb = EXCLUDED.mem_mb,
			disk_mb = EXCLUDED.disk_mb`,
		jt.ID, jt.Name, jt.Version, jt.IsPaused,
		jt.Resources.Cpus, jt.Resources.MemMB, jt.Resources.DiskMB)
	return err
}

func (s *PostgresStore) GetJobType(name, version string) (*types.JobType, error) {
	var row jobTypeRow
	err := s.db.Get(&row,
		`SELECT id, name, version, is_paused, cpus, mem_mb, disk_mb
		 FROM job_types WHERE name = $1 AND version = $2`, name, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job type %s %s: %w", name, version, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	jt := row.toJobType()
	return &jt, nil
}

func (s *PostgresStore) getJobTypeByIDTx(tx *sqlx.Tx, id string) (*types.JobType, error) {
	var row jobTypeRow
	err := tx.Get(&row,
		`SELECT id, name, version, is_paused, cpus, mem_mb, disk_mb
		 FROM job_types WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job type %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	jt := row.toJobType()
	return &jt, nil
}

func (s *PostgresStore) ListJobTypes() ([]types.JobType, error) {
	var rows []jobTypeRow
	err := s.db.Select(&rows,
		`SELECT id, name, version, is_paused, cpus, mem_mb, disk_mb FROM job_types ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	jobTypes := make([]types.JobType, 0, len(rows))
	for _, r := range rows {
		jobTypes = append(jobTypes, r.toJobType())
	}
	return jobTypes, nil
}

// Strike operations

func (s *PostgresStore) CreateStrike(strike *types.Strike) error {
	config, err := json.Marshal(strike.Configuration)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO strikes (id, name, title, description, configuration, job_id, created, last_modified)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		strike.ID, strike.Name, strike.Title, strike.Description, config,
		strike.JobID, strike.Created, strike.LastModified)
	return err
}

func (s *PostgresStore) GetStrike(id string) (*types.Strike, error) {
	row := s.db.QueryRow(
		`SELECT id, name, title, description, configuration, COALESCE(job_id, ''), created, last_modified
		 FROM strikes WHERE id = $1`, id)
	strike, err := scanStrike(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("strike %s: %w", id, ErrNotFound)
	}
	return strike, err
}

func (s *PostgresStore) ListStrikes(started, ended *time.Time, names []string) ([]*types.Strike, error) {
	query, args := processListQuery("strikes", started, ended, names)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strikes []*types.Strike
	for rows.Next() {
		strike, err := scanStrike(rows)
		if err != nil {
			return nil, err
		}
		strikes = append(strikes, strike)
	}
	return strikes, rows.Err()
}

func (s *PostgresStore) UpdateStrike(strike *types.Strike) error {
	strike.LastModified = time.Now().UTC()
	config, err := json.Marshal(strike.Configuration)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE strikes SET title = $2, description = $3, configuration = $4,
			job_id = NULLIF($5, ''), last_modified = $6
		 WHERE id = $1`,
		strike.ID, strike.Title, strike.Description, config, strike.JobID, strike.LastModified)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "strike", strike.ID)
}

// Scan operations

func (s *PostgresStore) CreateScan(scan *types.Scan) error {
	config, err := json.Marshal(scan.Configuration)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO scans (id, name, title, description, configuration, job_id, dry_run, created, last_modified)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		scan.ID, scan.Name, scan.Title, scan.Description, config,
		scan.JobID, scan.DryRun, scan.Created, scan.LastModified)
	return err
}

func (s *PostgresStore) GetScan(id string) (*types.Scan, error) {
	row := s.db.QueryRow(
		`SELECT id, name, title, description, configuration, COALESCE(job_id, ''), dry_run, created, last_modified
		 FROM scans WHERE id = $1`, id)
	scan, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	return scan, err
}

func (s *PostgresStore) ListScans(started, ended *time.Time, names []string) ([]*types.Scan, error) {
	query, args := processListQuery("scans", started, ended, names)
	// scans carry the extra dry_run column
	query = strings.Replace(query,
		"configuration, COALESCE(job_id, '')",
		"configuration, COALESCE(job_id, ''), dry_run", 1)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []*types.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func (s *PostgresStore) UpdateScan(scan *types.Scan) error {
	scan.LastModified = time.Now().UTC()
	config, err := json.Marshal(scan.Configuration)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE scans SET title = $2, description = $3, configuration = $4,
			job_id = NULLIF($5, ''), dry_run = $6, last_modified = $7
		 WHERE id = $1`,
		scan.ID, scan.Title, scan.Description, config, scan.JobID, scan.DryRun, scan.LastModified)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "scan", scan.ID)
}

// Ingest operations

func (s *PostgresStore) CreateIngest(ingest *types.Ingest) error {
	now := time.Now().UTC()
	if ingest.Created.IsZero() {
		ingest.Created = now
	}
	ingest.LastModified = now
	return s.db.QueryRow(
		`INSERT INTO ingests (file_name, strike_id, scan_id, status, bytes_transferred,
			transfer_started, transfer_ended, media_type, file_size, data_type,
			file_path, workspace_id, new_file_path, new_workspace_id, job_id,
			ingest_started, ingest_ended, data_started, data_ended, created, last_modified)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, NULLIF($15, ''), $16, $17, $18, $19, $20, $21)
		 RETURNING id`,
		ingest.FileName, ingest.StrikeID, ingest.ScanID, ingest.Status, ingest.BytesTransferred,
		ingest.TransferStarted, ingest.TransferEnded, ingest.MediaType, ingest.FileSize, ingest.DataType,
		ingest.FilePath, ingest.WorkspaceID, ingest.NewFilePath, ingest.NewWorkspaceID, ingest.JobID,
		ingest.IngestStarted, ingest.IngestEnded, ingest.DataStarted, ingest.DataEnded,
		ingest.Created, ingest.LastModified,
	).Scan(&ingest.ID)
}

func (s *PostgresStore) UpdateIngest(ingest *types.Ingest) error {
	ingest.LastModified = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE ingests SET status = $2, bytes_transferred = $3,
			transfer_started = $4, transfer_ended = $5, media_type = $6, file_size = $7,
			data_type = $8, file_path = $9, workspace_id = $10, new_file_path = $11,
			new_workspace_id = $12, job_id = NULLIF($13, ''), ingest_started = $14,
			ingest_ended = $15, data_started = $16, data_ended = $17, last_modified = $18
		 WHERE id = $1`,
		ingest.ID, ingest.Status, ingest.BytesTransferred,
		ingest.TransferStarted, ingest.TransferEnded, ingest.MediaType, ingest.FileSize,
		ingest.DataType, ingest.FilePath, ingest.WorkspaceID, ingest.NewFilePath,
		ingest.NewWorkspaceID, ingest.JobID, ingest.IngestStarted,
		ingest.IngestEnded, ingest.DataStarted, ingest.DataEnded, ingest.LastModified)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "ingest", fmt.Sprintf("%d", ingest.ID))
}

func (s *PostgresStore) ListIngests(filter IngestFilter) ([]*types.Ingest, error) {
	query := `SELECT id, file_name, COALESCE(strike_id, ''), COALESCE(scan_id, ''), status,
		bytes_transferred, transfer_started, transfer_ended, COALESCE(media_type, ''), file_size,
		data_type, COALESCE(file_path, ''), COALESCE(workspace_id, ''),
		COALESCE(new_file_path, ''), COALESCE(new_workspace_id, ''), COALESCE(job_id, ''),
		ingest_started, ingest_ended, data_started, data_ended, created, last_modified
		FROM ingests`
	var clauses []string
	var args []interface{}

	addArg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Started != nil {
		clauses = append(clauses, "last_modified >= "+addArg(*filter.Started))
	}
	if filter.Ended != nil {
		clauses = append(clauses, "last_modified <= "+addArg(*filter.Ended))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			placeholders = append(placeholders, addArg(string(status)))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.StrikeIDs) > 0 {
		placeholders := make([]string, 0, len(filter.StrikeIDs))
		for _, id := range filter.StrikeIDs {
			placeholders = append(placeholders, addArg(id))
		}
		clauses = append(clauses, "strike_id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.ScanIDs) > 0 {
		placeholders := make([]string, 0, len(filter.ScanIDs))
		for _, id := range filter.ScanIDs {
			placeholders = append(placeholders, addArg(id))
		}
		clauses = append(clauses, "scan_id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.FileName != "" {
		clauses = append(clauses, "file_name = "+addArg(filter.FileName))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingests []*types.Ingest
	for rows.Next() {
		var in types.Ingest
		err := rows.Scan(&in.ID, &in.FileName, &in.StrikeID, &in.ScanID, &in.Status,
			&in.BytesTransferred, &in.TransferStarted, &in.TransferEnded, &in.MediaType, &in.FileSize,
			&in.DataType, &in.FilePath, &in.WorkspaceID,
			&in.NewFilePath, &in.NewWorkspaceID, &in.JobID,
			&in.IngestStarted, &in.IngestEnded, &in.DataStarted, &in.DataEnded,
			&in.Created, &in.LastModified)
		if err != nil {
			return nil, err
		}
		ingests = append(ingests, &in)
	}
	return ingests, rows.Err()
}

func (s *PostgresStore) GetIngestsByScan(scanID string, fileNames []string) ([]*types.Ingest, error) {
	filter := IngestFilter{ScanIDs: []string{scanID}}
	ingests, err := s.ListIngests(filter)
	if err != nil {
		return nil, err
	}
	if len(fileNames) == 0 {
		return ingests, nil
	}
	var matched []*types.Ingest
	for _, ingest := range ingests {
		if containsString(fileNames, ingest.FileName) {
			matched = append(matched, ingest)
		}
	}
	return matched, nil
}

// Helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStrike(row rowScanner) (*types.Strike, error) {
	var strike types.Strike
	var config []byte
	err := row.Scan(&strike.ID, &strike.Name, &strike.Title, &strike.Description,
		&config, &strike.JobID, &strike.Created, &strike.LastModified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(config, &strike.Configuration); err != nil {
		return nil, err
	}
	return &strike, nil
}

func scanScan(row rowScanner) (*types.Scan, error) {
	var scan types.Scan
	var config []byte
	err := row.Scan(&scan.ID, &scan.Name, &scan.Title, &scan.Description,
		&config, &scan.JobID, &scan.DryRun, &scan.Created, &scan.LastModified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(config, &scan.Configuration); err != nil {
		return nil, err
	}
	return &scan, nil
}

func processListQuery(table string, started, ended *time.Time, names []string) (string, []interface{}) {
	query := fmt.Sprintf(
		`SELECT id, name, title, description, configuration, COALESCE(job_id, ''), created, last_modified FROM %s`,
		table)
	var clauses []string
	var args []interface{}

	if started != nil {
		args = append(args, *started)
		clauses = append(clauses, fmt.Sprintf("last_modified >= $%d", len(args)))
	}
	if ended != nil {
		args = append(args, *ended)
		clauses = append(clauses, fmt.Sprintf("last_modified <= $%d", len(args)))
	}
	if len(names) > 0 {
		placeholders := make([]string, 0, len(names))
		for _, name := range names {
			args = append(args, name)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		clauses = append(clauses, "name IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name"
	return query, args
}

func requireRowAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
