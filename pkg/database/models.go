package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DecodeRecord represents one decoded packet
type DecodeRecord struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	UUID            string    `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Name            string    `gorm:"index;size:128" json:"name"`
	Source          string    `gorm:"size:512" json:"source,omitempty"`
	SpreadingFactor int       `gorm:"index;not null" json:"spreading_factor"`
	CodeRate        int       `gorm:"not null" json:"code_rate"`
	Header          bool      `gorm:"not null" json:"header"`
	SymbolCount     int       `gorm:"not null" json:"symbol_count"`
	Nibbles         string    `gorm:"type:text" json:"nibbles"` // hex, one digit per nibble
	MaskedSymbols   int       `gorm:"default:0" json:"masked_symbols"`
	DroppedSymbols  int       `gorm:"default:0" json:"dropped_symbols"`
	Codewords       int       `gorm:"default:0" json:"codewords"`
	Corrected       int       `gorm:"default:0" json:"corrected"`
	Uncorrectable   int       `gorm:"default:0" json:"uncorrectable"`
	ForcedZero      int       `gorm:"default:0" json:"forced_zero"`
	ForcedOnes      int       `gorm:"default:0" json:"forced_ones"`
	DurationMicros  int64     `gorm:"default:0" json:"duration_us"`
	DecodedAt       time.Time `gorm:"index;not null" json:"decoded_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for DecodeRecord
func (DecodeRecord) TableName() string {
	return "decodes"
}

// BeforeCreate hook to ensure UUID and timestamps are set
func (r *DecodeRecord) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.DecodedAt.IsZero() {
		r.DecodedAt = time.Now()
	}
	return nil
}

// Clean reports whether the decode needed no repair and left no syndrome
func (r *DecodeRecord) Clean() bool {
	return r.Corrected == 0 && r.Uncorrectable == 0 && r.MaskedSymbols == 0
}
