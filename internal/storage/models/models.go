package models

import "time"

// AssetLoad is one start-up of the service against a set of artifacts.
type AssetLoad struct {
	ID        string        `json:"id"`
	Host      string        `json:"host"`
	Threshold float64       `json:"threshold"`
	LoadedAt  time.Time     `json:"loaded_at"`
	Assets    []AssetRecord `json:"assets"`
}

type AssetRecord struct {
	ID     int64  `json:"-"`
	LoadID string `json:"-"`
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}
