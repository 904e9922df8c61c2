package model

import "time"

// Shop is a merchant listing backed by the relational store and served
// through the cache guard on the read path.
type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TypeID    int64     `json:"type_id"`
	Address   string    `json:"address"`
	AvgPrice  int64     `json:"avg_price"`
	Sold      int64     `json:"sold"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
