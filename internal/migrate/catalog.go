package migrate

// Catalog returns the full ordered migration history of the application
// database. Released entries are append-only: editing a version or
// description here breaks every installed database at startup.
func Catalog() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create groups table",
			Script: `CREATE TABLE groups (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
		},
		{
			Version:     2,
			Description: "Seed default groups",
			Script: `INSERT INTO groups (name) VALUES ('Group A'), ('Group B'), ('Group C')`,
		},
		{
			Version:     3,
			Description: "Create students table",
			Script: `CREATE TABLE students (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				group_id INTEGER NOT NULL REFERENCES groups(id),
				payment_plan TEXT NOT NULL DEFAULT 'one-time',
				plan_amount INTEGER NOT NULL DEFAULT 0,
				installment_count INTEGER,
				paid_amount INTEGER NOT NULL DEFAULT 0,
				enrollment_date TEXT NOT NULL,
				next_due_date TEXT,
				payment_status TEXT NOT NULL DEFAULT 'pending',
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
		},
		{
			Version:     4,
			Description: "Create attendance table",
			Script: `CREATE TABLE attendance (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				date TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				UNIQUE(student_id, date)
			)`,
		},
		{
			Version:     5,
			Description: "Create payment transactions table",
			Script: `CREATE TABLE payment_transactions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				amount INTEGER NOT NULL,
				payment_date TEXT NOT NULL,
				payment_method TEXT NOT NULL DEFAULT 'cash',
				notes TEXT,
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
		},
		{
			Version:     6,
			Description: "Create settings table",
			Script: `CREATE TABLE settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
		},
		{
			Version:     7,
			Description: "Seed default settings",
			Script: `INSERT INTO settings (key, value) VALUES
				('default_groups', 'Group A,Group B,Group C'),
				('enable_audit_log', 'true'),
				('language', 'en'),
				('theme', 'light')`,
		},
		{
			Version:     8,
			Description: "Create audit log table",
			Script: `CREATE TABLE audit_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				action_type TEXT NOT NULL,
				table_name TEXT NOT NULL,
				record_id TEXT NOT NULL,
				old_values TEXT,
				new_values TEXT,
				timestamp TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
		},
		{
			Version:     9,
			Description: "Create payment settings table",
			Script: `CREATE TABLE payment_settings (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				one_time_amount INTEGER NOT NULL,
				monthly_amount INTEGER NOT NULL,
				installment_amount INTEGER NOT NULL,
				installment_interval_months INTEGER NOT NULL,
				reminder_days INTEGER NOT NULL,
				payment_threshold INTEGER NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
		},
		{
			Version:     10,
			Description: "Seed default payment settings",
			Script: `INSERT INTO payment_settings (
				id, one_time_amount, monthly_amount, installment_amount,
				installment_interval_months, reminder_days, payment_threshold
			) VALUES (1, 6000, 850, 2850, 3, 7, 6000)`,
		},
		{
			Version:     11,
			Description: "Create query indexes",
			Script: `CREATE INDEX idx_students_group_id ON students(group_id);
				CREATE INDEX idx_students_payment_status ON students(payment_status);
				CREATE INDEX idx_attendance_student_id ON attendance(student_id);
				CREATE INDEX idx_attendance_date ON attendance(date);
				CREATE INDEX idx_payment_transactions_student_id ON payment_transactions(student_id);
				CREATE INDEX idx_audit_log_table_record ON audit_log(table_name, record_id)`,
		},
	}
}
