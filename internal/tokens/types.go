package tokens

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("token not found")

type Token struct {
	Mint      string    `json:"mint"`
	Symbol    string    `json:"symbol"`
	UpdatedAt time.Time `json:"updated_at"`
}
