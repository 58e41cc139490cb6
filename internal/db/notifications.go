package db

import (
	"time"

	"github.com/tgienger/tasktrack/internal/models"
)

// DefaultListLimit caps ListNotifications when no limit is given
const DefaultListLimit = 50

// Record appends a notification to the journal
func (db *DB) Record(n models.Notification) error {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO notifications (level, op, message, created_at) VALUES (?, ?, ?, ?)
	`, string(n.Level), n.Op, n.Message, created.UTC())
	return err
}

// ListNotifications returns the newest notifications first.
// A non-empty level keeps only that level.
func (db *DB) ListNotifications(limit int, level models.Level) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.Query(`
		SELECT id, level, op, message, created_at
		FROM notifications
		WHERE ? = '' OR level = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, string(level), string(level), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n   models.Notification
			lvl string
		)
		if err := rows.Scan(&n.ID, &lvl, &n.Op, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Level = models.Level(lvl)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Prune deletes notifications older than cutoff and returns how many were removed
func (db *DB) Prune(cutoff time.Time) (int64, error) {
	res, err := db.Exec("DELETE FROM notifications WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// NotificationCount returns the number of journaled notifications
func (db *DB) NotificationCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM notifications").Scan(&count)
	return count, err
}
