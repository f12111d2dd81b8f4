package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

const ProviderKey = "mysql"

const mySQLDuplicateEntry = 1062

var ErrNotConnected = errors.New("mysql: not connected")

type Provider struct {
	PrimaryDSN        string `json:"primaryDsn"` // user:password@tcp(hostname:port)
	Database          string `json:"database"`
	primaryConnection *sql.DB
}

func (p *Provider) Close() error {
	if p.primaryConnection == nil {
		return nil
	}
	return p.primaryConnection.Close()
}

func (p *Provider) Connect() error {
	if p.primaryConnection == nil {
		var err error
		p.primaryConnection, err = sql.Open("mysql", p.PrimaryDSN+"/"+p.Database+"?parseTime=true")
		// Handle any errors that may occur during connection
		if err != nil {
			return err
		}
	}

	// Ping the database to ensure a successful connection
	return p.primaryConnection.Ping()
}

// Initialize connects and applies any schema migrations not yet recorded.
func (p *Provider) Initialize(ctx context.Context) error {
	if err := p.Connect(); err != nil {
		return err
	}

	if _, err := p.primaryConnection.ExecContext(ctx, "create table if not exists caseload_migrations ("+
		"migration varchar(16) not null primary key,"+
		"applied   int         not null"+
		")"); err != nil {
		return err
	}

	processed := make(map[string]bool)
	rows, err := p.primaryConnection.QueryContext(ctx, "SELECT migration, applied FROM caseload_migrations")
	if err != nil {
		return err
	}
	for rows.Next() {
		var migKey string
		var applied int
		if scanErr := rows.Scan(&migKey, &applied); scanErr != nil {
			rows.Close()
			return scanErr
		}
		processed[migKey] = applied == 1
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, query := range migrations() {
		if processed[query.key] {
			continue
		}
		if _, migErr := p.primaryConnection.ExecContext(ctx, query.query); migErr != nil {
			return fmt.Errorf("migration %s: %w", query.key, migErr)
		}
		if _, migErr := p.primaryConnection.ExecContext(ctx, "INSERT INTO caseload_migrations (migration, applied) VALUES (?, 1)", query.key); migErr != nil {
			return migErr
		}
	}
	return nil
}

func (p *Provider) conn() (*sql.DB, error) {
	if p.primaryConnection == nil {
		return nil, ErrNotConnected
	}
	return p.primaryConnection, nil
}

func isDuplicateConflict(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mySQLDuplicateEntry
}

func FromJson(data []byte) (*Provider, error) {
	p := &Provider{}
	if err := json.Unmarshal(data, &p); err == nil {
		return p, nil
	} else {
		return nil, err
	}
}
