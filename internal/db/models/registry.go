package models

// SymbolRegistryRecord is the gorm-mapped row backing the symbol
// registry: canonical_symbol <-> {broker_a_ticker, broker_b_conid}.
// Schema is applied out-of-band in production; AutoMigrate only runs
// when Database.AutoMigrate is set, for local/dev use.
type SymbolRegistryRecord struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CanonicalSymbol string `gorm:"type:varchar(32);uniqueIndex;not null" json:"canonical_symbol"`
	AssetClass      string `gorm:"type:varchar(16);not null;default:EQUITY" json:"asset_class"`
	Currency        string `gorm:"type:varchar(8);not null;default:USD" json:"currency"`
	BrokerATicker   *string `gorm:"type:varchar(32);uniqueIndex" json:"broker_a_ticker"`
	BrokerBConID    *int64  `gorm:"uniqueIndex" json:"broker_b_conid"`
	Description     string `gorm:"type:text" json:"description"`
}

// TableName pins the table name regardless of struct rename.
func (SymbolRegistryRecord) TableName() string { return "symbol_registry" }
