package models

import "time"

// HistoricalBar is the optional OHLC table keyed by (symbol_id, ts),
// used by the data subsystem. The core neither writes nor reads it;
// MigrateJanusSchema only creates it.
type HistoricalBar struct {
	SymbolID int64     `gorm:"primaryKey;column:symbol_id" json:"symbol_id"`
	Ts       time.Time `gorm:"primaryKey" json:"ts"`
	Interval string    `gorm:"type:varchar(8)" json:"interval"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	WAP      float64   `json:"wap"`
}

// TableName pins the table name regardless of struct rename.
func (HistoricalBar) TableName() string { return "historical_bars" }
