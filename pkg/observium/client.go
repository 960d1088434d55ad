// Package observium is the client for the monitoring database.
//
// It supplies the two external lookups the diagnosis loop needs: the disk
// alert listing (filtered to live hosts and real fixed-disk volumes, ordered
// by descending usage) and the device directory used to resolve short or
// ambiguous hostnames the model proposes.
package observium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/hbmon/diskdiag/pkg/audit"
	"github.com/hbmon/diskdiag/pkg/config"
	"github.com/hbmon/diskdiag/pkg/model"
)

// ErrUnreachable marks monitoring-database connection or query failures, so
// callers can distinguish "no alerts" from "alert source down".
var ErrUnreachable = errors.New("monitoring database unreachable")

// ErrHostNotFound is returned when a hostname resolves to no known device.
var ErrHostNotFound = errors.New("host not found in device directory")

// Client wraps the monitoring database connection.
type Client struct {
	db    *sql.DB
	audit *audit.Logger
}

// NewClient opens the monitoring database connection pool.
func NewClient(cfg config.Database, auditLog *audit.Logger) (*Client, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open monitoring db: %w", err)
	}
	db.SetMaxOpenConns(2)
	return &Client{db: db, audit: auditLog}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

const diskAlertQuery = `
SELECT
    d.hostname,
    s.storage_descr,
    s.storage_perc,
    s.storage_used,
    s.storage_size
FROM storage s
JOIN devices d ON s.device_id = d.device_id
WHERE s.storage_perc >= ?
    AND d.status = 1
    AND d.` + "`ignore`" + ` = 0
    AND d.disabled = 0
    AND s.storage_ignore = 0
    AND s.storage_deleted = 0
    AND s.storage_type = 'hrStorageFixedDisk'
    AND s.storage_descr NOT LIKE '/proc%'
    AND s.storage_descr NOT LIKE '/sys%'
    AND s.storage_descr NOT LIKE '/dev%'
    AND s.storage_descr NOT LIKE '/run%'
ORDER BY s.storage_perc DESC`

// GetDiskAlerts fetches storage alerts at or above threshold percent. Down,
// ignored and disabled devices and pseudo filesystems are excluded by the
// query; callers can trust the descending-usage order. An empty slice means
// no alerts; a connection or query failure wraps ErrUnreachable.
func (c *Client) GetDiskAlerts(ctx context.Context, threshold int) ([]model.Alert, error) {
	rows, err := c.db.QueryContext(ctx, diskAlertQuery, threshold)
	if err != nil {
		c.audit.Error("disk alert query failed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.Host, &a.Mount, &a.UsagePercent, &a.UsedBytes, &a.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if len(alerts) > 0 {
		c.audit.Info(fmt.Sprintf("found %d disk alerts above %d%%", len(alerts), threshold), nil)
	}
	return alerts, nil
}

// Device is one entry from the device directory.
type Device struct {
	Hostname string
	Type     string
	Status   int
}

// ResolveHost maps a short or partial hostname to its canonical device.
// Exact match wins; otherwise the first live prefix match is used.
func (c *Client) ResolveHost(ctx context.Context, short string) (*Device, error) {
	const q = `
SELECT hostname, type, status
FROM devices
WHERE (hostname = ? OR hostname LIKE CONCAT(?, '.%') OR hostname LIKE CONCAT(?, '%'))
    AND disabled = 0
ORDER BY (hostname = ?) DESC, status DESC, hostname
LIMIT 1`

	var d Device
	err := c.db.QueryRowContext(ctx, q, short, short, short, short).Scan(&d.Hostname, &d.Type, &d.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotFound, short)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return &d, nil
}
