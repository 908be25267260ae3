package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Outcomes recorded for security-relevant decisions.
const (
	OutcomeSuccess     = "success"
	OutcomeDeniedAuth  = "denied_auth"
	OutcomeDeniedScope = "denied_scope"
	OutcomeRateLimited = "rate_limited"
)

type Entry struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	Actor          string                 `json:"actor"`
	Action         string                 `json:"action"`
	Outcome        string                 `json:"outcome"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IPAddress      string                 `json:"ip_address"`
	CreatedAt      int64                  `json:"created_at"`
}

// Logger is the security-audit sink. Writes are asynchronous so an
// audit insert never sits on the request path.
type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Log(entry Entry) {
	entry.ID = "audit_" + uuid.New().String()
	entry.CreatedAt = time.Now().Unix()

	metaJSON, _ := json.Marshal(entry.Metadata)

	go func() {
		query := `
			INSERT INTO audit_logs (id, organization_id, actor, action, outcome, resource_type, resource_id, metadata, ip_address, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := l.db.Exec(query, entry.ID, entry.OrganizationID, entry.Actor, entry.Action, entry.Outcome, entry.ResourceType, entry.ResourceID, string(metaJSON), entry.IPAddress, entry.CreatedAt); err != nil {
			log.Error().Err(err).Str("action", entry.Action).Msg("audit log write failed")
		}
	}()
}

// List returns the most recent entries for an organization.
func (l *Logger) List(orgID string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.Query(`
		SELECT id, organization_id, actor, action, outcome, resource_type, resource_id, metadata, ip_address, created_at
		FROM audit_logs WHERE organization_id = ? ORDER BY created_at DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var metaStr sql.NullString
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Actor, &e.Action, &e.Outcome, &e.ResourceType, &e.ResourceID, &metaStr, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		if metaStr.Valid && metaStr.String != "" {
			json.Unmarshal([]byte(metaStr.String), &e.Metadata)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
