package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_predictions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_alerts",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_interventions",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
		{
			Version: 5,
			Name:    "create_alert_deliveries",
			UpSQL:   migration005Up,
			DownSQL: migration005Down,
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// 001: students read model. The student record system owns this table; the
// engine reads signals and writes back only the risk summary columns.
// ──────────────────────────────────────────────────────────────────────────────

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
	id UUID PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'Active',

	attendance_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_cgpa DOUBLE PRECISION NOT NULL DEFAULT 0,
	grade_trend TEXT NOT NULL DEFAULT 'stable',
	semester INTEGER NOT NULL DEFAULT 1,
	recent_grades JSONB NOT NULL DEFAULT '[]',

	fee_status TEXT NOT NULL DEFAULT 'Pending',
	has_scholarship BOOLEAN NOT NULL DEFAULT FALSE,

	disciplinary_incidents INTEGER NOT NULL DEFAULT 0,
	special_needs BOOLEAN NOT NULL DEFAULT FALSE,
	displaced BOOLEAN NOT NULL DEFAULT FALSE,
	age INTEGER NOT NULL DEFAULT 0,

	risk_score INTEGER NOT NULL DEFAULT 0,
	risk_level TEXT NOT NULL DEFAULT 'Low',
	risk_assessed_at TIMESTAMPTZ,

	observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_status ON students(status);
CREATE INDEX IF NOT EXISTS idx_students_risk_level ON students(risk_level);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
`

// ──────────────────────────────────────────────────────────────────────────────
// 002: predictions. The partial unique index carries the single-active
// invariant; Record serializes concurrent writers against it.
// ──────────────────────────────────────────────────────────────────────────────

const migration002Up = `
CREATE TABLE IF NOT EXISTS predictions (
	id UUID PRIMARY KEY,
	student_id UUID NOT NULL,

	probability DOUBLE PRECISION NOT NULL,
	risk_score INTEGER NOT NULL,
	risk_level TEXT NOT NULL,
	outcome TEXT NOT NULL,
	factors JSONB NOT NULL DEFAULT '[]',

	model_version TEXT NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	valid_until TIMESTAMPTZ NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_predictions_active
	ON predictions(student_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_predictions_student ON predictions(student_id, computed_at DESC);
CREATE INDEX IF NOT EXISTS idx_predictions_expiry ON predictions(valid_until) WHERE is_active;
`

const migration002Down = `
DROP TABLE IF EXISTS predictions;
`

// ──────────────────────────────────────────────────────────────────────────────
// 003: alerts. The partial unique index carries the dedup invariant: at most
// one non-terminal alert per (student, type).
// ──────────────────────────────────────────────────────────────────────────────

const migration003Up = `
CREATE TABLE IF NOT EXISTS alerts (
	id UUID PRIMARY KEY,
	student_id UUID NOT NULL,
	alert_type TEXT NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,

	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	trigger_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_value DOUBLE PRECISION NOT NULL DEFAULT 0,

	escalation_level INTEGER NOT NULL DEFAULT 0,
	last_escalated_at TIMESTAMPTZ,

	assigned_to TEXT NOT NULL DEFAULT '',
	resolved_by TEXT NOT NULL DEFAULT '',
	resolved_at TIMESTAMPTZ,
	resolution_notes TEXT NOT NULL DEFAULT '',

	is_auto_generated BOOLEAN NOT NULL DEFAULT TRUE,
	generated_by TEXT NOT NULL DEFAULT '',

	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_alerts_open
	ON alerts(student_id, alert_type)
	WHERE status IN ('Active', 'Acknowledged', 'InProgress');
CREATE INDEX IF NOT EXISTS idx_alerts_student ON alerts(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_sweep ON alerts(status)
	WHERE status IN ('Active', 'Acknowledged', 'InProgress');
`

const migration003Down = `
DROP TABLE IF EXISTS alerts;
`

// ──────────────────────────────────────────────────────────────────────────────
// 004: interventions
// ──────────────────────────────────────────────────────────────────────────────

const migration004Up = `
CREATE TABLE IF NOT EXISTS interventions (
	id UUID PRIMARY KEY,
	student_id UUID NOT NULL,
	alert_id UUID,

	intervention_type TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',

	assigned_to TEXT NOT NULL DEFAULT '',
	assigned_by TEXT NOT NULL DEFAULT '',

	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ NOT NULL,
	frequency TEXT NOT NULL,
	total_sessions INTEGER NOT NULL,
	sessions JSONB NOT NULL DEFAULT '[]',

	status TEXT NOT NULL,
	outcome TEXT NOT NULL DEFAULT 'Ongoing',
	effectiveness_rating INTEGER NOT NULL DEFAULT 0,

	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interventions_student ON interventions(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_interventions_overdue ON interventions(end_date)
	WHERE status NOT IN ('Completed', 'Cancelled');
`

const migration004Down = `
DROP TABLE IF EXISTS interventions;
`

// ──────────────────────────────────────────────────────────────────────────────
// 005: alert_deliveries. Delivery outcomes live apart from alert state.
// ──────────────────────────────────────────────────────────────────────────────

const migration005Up = `
CREATE TABLE IF NOT EXISTS alert_deliveries (
	id UUID PRIMARY KEY,
	alert_id UUID NOT NULL,
	recipient TEXT NOT NULL,
	channel TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	sent_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_deliveries_alert ON alert_deliveries(alert_id, sent_at DESC);
`

const migration005Down = `
DROP TABLE IF EXISTS alert_deliveries;
`
