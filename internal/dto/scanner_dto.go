package dto

import "time"

type LatestScanResponse struct {
	Code      string           `json:"code"`
	ScannedAt time.Time        `json:"scanned_at"`
	Found     bool             `json:"found"`
	Account   *AccountResponse `json:"account,omitempty"`
}

type ScannerStatusResponse struct {
	Enabled   bool       `json:"enabled"`
	State     string     `json:"state"`
	Port      string     `json:"port"`
	LastError string     `json:"last_error,omitempty"`
	LastScan  *time.Time `json:"last_scan,omitempty"`
	Recent    []string   `json:"recent"`
}
