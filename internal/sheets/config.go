// Package sheets exports leak records to a Google Sheets spreadsheet.
package sheets

import (
	"errors"
	"time"
)

// Config describes where leak reports land and how the writer authenticates.
// Exactly one of the OAuth2 triple or ServiceAccountPath must be set.
type Config struct {
	// OAuth2 installed-app credentials.
	ClientID     string
	ClientSecret string
	RefreshToken string

	// ServiceAccountPath points at a JSON key for a service account.
	ServiceAccountPath string

	// SpreadsheetID targets an existing report; when empty a new
	// spreadsheet called SpreadsheetName is created on every export.
	SpreadsheetID   string
	SpreadsheetName string
	TimeZone        string

	BatchSize        int
	RetryAttempts    int
	RetryDelay       time.Duration
	EnableFormatting bool
}

// DefaultConfig returns the writer settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  "Leak Records",
		TimeZone:         "Asia/Kolkata",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		EnableFormatting: true,
	}
}

func (c *Config) usesOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Validate reports the first problem that would stop an export.
func (c *Config) Validate() error {
	oauth, account := c.usesOAuth(), c.ServiceAccountPath != ""
	switch {
	case !oauth && !account:
		return errors.New("sheets credentials missing: set an OAuth2 client or a service account key")
	case oauth && account:
		return errors.New("sheets credentials ambiguous: configure OAuth2 or a service account, not both")
	case c.SpreadsheetID == "" && c.SpreadsheetName == "":
		return errors.New("sheets destination missing: set spreadsheet_id or spreadsheet_name")
	case c.BatchSize < 1:
		return errors.New("sheets batch size must be at least 1")
	case c.RetryAttempts < 0 || c.RetryDelay < 0:
		return errors.New("sheets retry settings must not be negative")
	}
	return nil
}
